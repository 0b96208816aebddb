package vm


// CastValue converts a value to the named target type, the `as Type`
// operator. Failures are CastError, not TypeError: the distinction lets
// catch clauses separate bad conversions from bad operands.
func CastValue(v Value, target string) (Value, *VMError) {
	switch target {
	case "None":
		return None(), nil
	case "Bool":
		return BoolValue(v.ToBool()), nil
	case "Number":
		n, ok := v.ToNumber()
		if !ok {
			return None(), castErrorf("cannot cast %s to Number", v.TypeName())
		}
		return NumberValue(n), nil
	case "Int":
		n, ok := v.ToNumber()
		if !ok {
			return None(), castErrorf("cannot cast %s to Int", v.TypeName())
		}
		return IntValue(n.ToInt()), nil
	case "UInt":
		n, ok := v.ToNumber()
		if !ok {
			return None(), castErrorf("cannot cast %s to UInt", v.TypeName())
		}
		if n.IsNegative() {
			return None(), castErrorf("cannot cast negative %s to UInt", n)
		}
		if n.Kind == FloatKind {
			return UIntValue(uint64(n.ToFloat())), nil
		}
		return UIntValue(n.UInt()), nil
	case "Float":
		n, ok := v.ToNumber()
		if !ok {
			return None(), castErrorf("cannot cast %s to Float", v.TypeName())
		}
		return FloatValue(n.ToFloat()), nil
	case "String":
		return StringValue(v.String()), nil
	case "List":
		return ListValue(v.ToList()), nil
	case "Map":
		return MapValue(v.ToMap()), nil
	case "Error":
		if v.Kind == ErrKind {
			return v, nil
		}
		return ErrorValue(newError(UserRaised, v.String())), nil
	default:
		return castToObject(v, target)
	}
}

// castToObject handles user-declared object types. Maps promote by copying
// their entries into a fresh object; objects cast by renaming only when the
// shapes agree.
func castToObject(v Value, target string) (Value, *VMError) {
	switch v.Kind {
	case MapKind:
		return ObjectValue(ObjectFromMap(target, v.m)), nil
	case ObjectKind:
		if v.obj.TypeName() == target {
			return v, nil
		}
		if f, ok := v.obj.(FieldObject); ok {
			return ObjectValue(ObjectFromMap(target, f.Fields())), nil
		}
		return None(), castErrorf("cannot cast %s to %s", v.obj.TypeName(), target)
	default:
		return None(), castErrorf("cannot cast %s to %s", v.TypeName(), target)
	}
}

func castErrorf(format string, args ...any) *VMError {
	return newError(CastError, format, args...)
}
