package modules

import (
	"github.com/google/uuid"

	"github.com/funvibe/rigz/internal/vm"
)

// UUID exposes v4 and v7 generation plus validation.
func UUID() *NativeModule {
	m := NewNativeModule("UUID")
	m.Fn("v4() -> String", uuidV4)
	m.Fn("v7() -> String", uuidV7)
	m.Fn("valid(text) -> Bool", uuidValid)
	return m
}

func uuidV4(args []vm.Value) (vm.Value, *vm.VMError) {
	if err := exactArgs("UUID.v4", args, 0); err != nil {
		return vm.None(), err
	}
	return vm.StringValue(uuid.NewString()), nil
}

func uuidV7(args []vm.Value) (vm.Value, *vm.VMError) {
	if err := exactArgs("UUID.v7", args, 0); err != nil {
		return vm.None(), err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return vm.None(), vm.Errorf(vm.RuntimeError, "UUID.v7: %s", err)
	}
	return vm.StringValue(id.String()), nil
}

func uuidValid(args []vm.Value) (vm.Value, *vm.VMError) {
	text, err := stringArg("UUID.valid", args, 0)
	if err != nil {
		return vm.None(), err
	}
	_, parseErr := uuid.Parse(text)
	return vm.BoolValue(parseErr == nil), nil
}
