package modules

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/funvibe/rigz/internal/vm"
)

// RPC is the dynamic gRPC client: load .proto descriptors at runtime,
// invoke unary methods with map-shaped requests, and encode/decode raw
// messages. Everything that goes wrong on the wire is a RuntimeError.
func RPC() *NativeModule {
	m := NewNativeModule("RPC")
	m.Fn("load_proto(path) -> None", rpcLoadProto)
	m.Fn("connect(target) -> RpcConn", rpcConnect)
	m.Fn("close(connection) -> None", rpcClose)
	m.Fn("invoke(connection, method, request) -> Map", rpcInvoke)
	m.Fn("encode(message, data) -> String", rpcEncode)
	m.Fn("decode(message, data) -> Map", rpcDecode)
	return m
}

var (
	protoRegistry   = make(map[string]*desc.FileDescriptor)
	protoRegistryMu sync.RWMutex
)

// connObject wraps a client connection as a language Object so scripts
// can pass it around and extensions resolve against the RpcConn type.
type connObject struct {
	target string
	conn   *grpc.ClientConn
}

func (o *connObject) TypeName() string       { return "RpcConn" }
func (o *connObject) CloneObject() vm.Object { return o }
func (o *connObject) EqualObject(other vm.Object) bool {
	c, ok := other.(*connObject)
	return ok && c == o
}
func (o *connObject) String() string {
	if o.conn == nil {
		return "RpcConn(closed)"
	}
	return fmt.Sprintf("RpcConn(%s)", o.target)
}

func rpcLoadProto(args []vm.Value) (vm.Value, *vm.VMError) {
	path, err := stringArg("RPC.load_proto", args, 0)
	if err != nil {
		return vm.None(), err
	}
	parser := protoparse.Parser{ImportPaths: []string{"."}}
	fds, parseErr := parser.ParseFiles(path)
	if parseErr != nil {
		return vm.None(), vm.Errorf(vm.RuntimeError, "RPC.load_proto: %s", parseErr)
	}
	protoRegistryMu.Lock()
	for _, fd := range fds {
		protoRegistry[fd.GetName()] = fd
	}
	protoRegistryMu.Unlock()
	return vm.None(), nil
}

func rpcConnect(args []vm.Value) (vm.Value, *vm.VMError) {
	target, err := stringArg("RPC.connect", args, 0)
	if err != nil {
		return vm.None(), err
	}
	conn, dialErr := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if dialErr != nil {
		return vm.None(), vm.Errorf(vm.RuntimeError, "RPC.connect: %s", dialErr)
	}
	return vm.ObjectValue(&connObject{target: target, conn: conn}), nil
}

func rpcClose(args []vm.Value) (vm.Value, *vm.VMError) {
	c, err := connArg("RPC.close", args, 0)
	if err != nil {
		return vm.None(), err
	}
	if c.conn != nil {
		closeErr := c.conn.Close()
		c.conn = nil
		if closeErr != nil {
			return vm.None(), vm.Errorf(vm.RuntimeError, "RPC.close: %s", closeErr)
		}
	}
	return vm.None(), nil
}

func rpcInvoke(args []vm.Value) (vm.Value, *vm.VMError) {
	c, err := connArg("RPC.invoke", args, 0)
	if err != nil {
		return vm.None(), err
	}
	if c.conn == nil {
		return vm.None(), vm.Errorf(vm.RuntimeError, "RPC.invoke: connection is closed")
	}
	method, err := stringArg("RPC.invoke", args, 1)
	if err != nil {
		return vm.None(), err
	}
	if err := exactArgs("RPC.invoke", args, 3); err != nil {
		return vm.None(), err
	}

	md, err := findMethodDescriptor(method)
	if err != nil {
		return vm.None(), err
	}
	req := dynamic.NewMessage(md.GetInputType())
	if err := valueToMessage(args[2], req); err != nil {
		return vm.None(), err
	}
	resp := dynamic.NewMessage(md.GetOutputType())

	path := method
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if invokeErr := c.conn.Invoke(context.Background(), path, req, resp); invokeErr != nil {
		return vm.None(), vm.Errorf(vm.RuntimeError, "RPC.invoke: %s", invokeErr)
	}
	return messageToValue(resp), nil
}

func rpcEncode(args []vm.Value) (vm.Value, *vm.VMError) {
	name, err := stringArg("RPC.encode", args, 0)
	if err != nil {
		return vm.None(), err
	}
	if err := exactArgs("RPC.encode", args, 2); err != nil {
		return vm.None(), err
	}
	md, err := findMessageDescriptor(name)
	if err != nil {
		return vm.None(), err
	}
	msg := dynamic.NewMessage(md)
	if err := valueToMessage(args[1], msg); err != nil {
		return vm.None(), err
	}
	data, marshalErr := msg.Marshal()
	if marshalErr != nil {
		return vm.None(), vm.Errorf(vm.RuntimeError, "RPC.encode: %s", marshalErr)
	}
	return vm.StringValue(string(data)), nil
}

func rpcDecode(args []vm.Value) (vm.Value, *vm.VMError) {
	name, err := stringArg("RPC.decode", args, 0)
	if err != nil {
		return vm.None(), err
	}
	data, err := stringArg("RPC.decode", args, 1)
	if err != nil {
		return vm.None(), err
	}
	md, err := findMessageDescriptor(name)
	if err != nil {
		return vm.None(), err
	}
	msg := dynamic.NewMessage(md)
	if unmarshalErr := msg.Unmarshal([]byte(data)); unmarshalErr != nil {
		return vm.None(), vm.Errorf(vm.RuntimeError, "RPC.decode: %s", unmarshalErr)
	}
	return messageToValue(msg), nil
}

func connArg(fn string, args []vm.Value, i int) (*connObject, *vm.VMError) {
	if i >= len(args) || args[i].Kind != vm.ObjectKind {
		return nil, vm.Errorf(vm.TypeError, "%s: argument %d must be an RpcConn", fn, i+1)
	}
	c, ok := args[i].AsObject().(*connObject)
	if !ok {
		return nil, vm.Errorf(vm.TypeError, "%s: argument %d must be an RpcConn, got %s", fn, i+1, args[i].TypeName())
	}
	return c, nil
}

func findMethodDescriptor(path string) (*desc.MethodDescriptor, *vm.VMError) {
	slash := strings.LastIndexByte(path, '/')
	if slash < 0 {
		return nil, vm.Errorf(vm.RuntimeError, "invalid method path %q, expected package.Service/Method", path)
	}
	service, method := path[:slash], path[slash+1:]

	protoRegistryMu.RLock()
	defer protoRegistryMu.RUnlock()
	for _, fd := range protoRegistry {
		if svc := fd.FindService(service); svc != nil {
			if md := svc.FindMethodByName(method); md != nil {
				return md, nil
			}
		}
	}
	return nil, vm.Errorf(vm.RuntimeError, "method %q not found, load its proto first", path)
}

func findMessageDescriptor(name string) (*desc.MessageDescriptor, *vm.VMError) {
	protoRegistryMu.RLock()
	defer protoRegistryMu.RUnlock()
	for _, fd := range protoRegistry {
		if md := fd.FindMessage(name); md != nil {
			return md, nil
		}
	}
	return nil, vm.Errorf(vm.RuntimeError, "message type %q not found, load its proto first", name)
}

// valueToMessage populates a dynamic message from a Map or field Object.
// Unknown fields are skipped so scripts can pass richer maps.
func valueToMessage(v vm.Value, msg *dynamic.Message) *vm.VMError {
	var fields *vm.Map
	switch v.Kind {
	case vm.MapKind:
		fields = v.AsMap()
	case vm.ObjectKind:
		fielded, ok := v.AsObject().(vm.FieldObject)
		if !ok {
			return vm.Errorf(vm.TypeError, "cannot encode %s as a message", v.TypeName())
		}
		fields = fielded.Fields()
	default:
		return vm.Errorf(vm.TypeError, "cannot encode %s as a message, expected Map", v.TypeName())
	}

	var fieldErr *vm.VMError
	fields.Each(func(key, value vm.Value) bool {
		fd := msg.GetMessageDescriptor().FindFieldByName(key.String())
		if fd == nil {
			return true
		}
		converted, err := valueToField(value, fd)
		if err != nil {
			fieldErr = vm.Errorf(err.Kind, "field %s: %s", key, err.Message)
			return false
		}
		if converted != nil {
			msg.SetField(fd, converted)
		}
		return true
	})
	return fieldErr
}

func valueToField(v vm.Value, fd *desc.FieldDescriptor) (any, *vm.VMError) {
	if fd.IsRepeated() {
		if v.Kind != vm.ListKind {
			return nil, vm.Errorf(vm.TypeError, "expected List for repeated field, got %s", v.TypeName())
		}
		var out []any
		for _, elem := range v.AsList() {
			converted, err := scalarToField(elem, fd)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	}
	if v.IsNone() {
		return nil, nil
	}
	return scalarToField(v, fd)
}

func scalarToField(v vm.Value, fd *desc.FieldDescriptor) (any, *vm.VMError) {
	switch fd.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_INT32,
		descriptorpb.FieldDescriptorProto_TYPE_SINT32,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED32:
		if n, ok := v.ToNumber(); ok {
			return int32(n.ToInt()), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_INT64,
		descriptorpb.FieldDescriptorProto_TYPE_SINT64,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED64:
		if n, ok := v.ToNumber(); ok {
			return n.ToInt(), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_UINT32,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED32:
		if n, ok := v.ToNumber(); ok {
			return uint32(n.ToInt()), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_UINT64,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED64:
		if n, ok := v.ToNumber(); ok {
			return uint64(n.ToInt()), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_FLOAT:
		if n, ok := v.ToNumber(); ok {
			return float32(n.ToFloat()), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:
		if n, ok := v.ToNumber(); ok {
			return n.ToFloat(), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		return v.ToBool(), nil
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		return v.String(), nil
	case descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		if v.Kind == vm.StringKind {
			return []byte(v.AsString()), nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE:
		nested := dynamic.NewMessage(fd.GetMessageType())
		if err := valueToMessage(v, nested); err != nil {
			return nil, err
		}
		return nested, nil
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		if n, ok := v.ToNumber(); ok {
			return int32(n.ToInt()), nil
		}
		if v.Kind == vm.StringKind {
			if ev := fd.GetEnumType().FindValueByName(v.AsString()); ev != nil {
				return ev.GetNumber(), nil
			}
		}
	}
	return nil, vm.Errorf(vm.TypeError, "cannot convert %s to proto %s", v.TypeName(), fd.GetType())
}

func messageToValue(msg *dynamic.Message) vm.Value {
	out := vm.NewMap()
	for _, fd := range msg.GetMessageDescriptor().GetFields() {
		out.Set(vm.StringValue(fd.GetName()), fieldToValue(msg.GetField(fd), fd))
	}
	return vm.MapValue(out)
}

func fieldToValue(raw any, fd *desc.FieldDescriptor) vm.Value {
	if raw == nil {
		return vm.None()
	}
	if fd.IsRepeated() {
		slice, ok := raw.([]any)
		if !ok {
			return vm.ListValue(nil)
		}
		elems := make([]vm.Value, len(slice))
		for i, e := range slice {
			elems[i] = scalarToValue(e)
		}
		return vm.ListValue(elems)
	}
	return scalarToValue(raw)
}

func scalarToValue(raw any) vm.Value {
	switch v := raw.(type) {
	case int32:
		return vm.IntValue(int64(v))
	case int64:
		return vm.IntValue(v)
	case uint32:
		return vm.UIntValue(uint64(v))
	case uint64:
		return vm.UIntValue(v)
	case float32:
		return vm.FloatValue(float64(v))
	case float64:
		return vm.FloatValue(v)
	case bool:
		return vm.BoolValue(v)
	case string:
		return vm.StringValue(v)
	case []byte:
		return vm.StringValue(string(v))
	case *dynamic.Message:
		return messageToValue(v)
	case int:
		return vm.IntValue(int64(v))
	}
	return vm.None()
}
