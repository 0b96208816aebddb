package modules

import (
	"github.com/funvibe/rigz/internal/vm"
)

func exactArgs(fn string, args []vm.Value, n int) *vm.VMError {
	if len(args) != n {
		return vm.Errorf(vm.RuntimeError, "%s expects %d arguments, got %d", fn, n, len(args))
	}
	return nil
}

func atLeastArgs(fn string, args []vm.Value, n int) *vm.VMError {
	if len(args) < n {
		return vm.Errorf(vm.RuntimeError, "%s expects at least %d arguments, got %d", fn, n, len(args))
	}
	return nil
}

func stringArg(fn string, args []vm.Value, i int) (string, *vm.VMError) {
	if i >= len(args) {
		return "", vm.Errorf(vm.RuntimeError, "%s: missing argument %d", fn, i+1)
	}
	if args[i].Kind != vm.StringKind {
		return "", vm.Errorf(vm.TypeError, "%s: argument %d must be a String, got %s", fn, i+1, args[i].TypeName())
	}
	return args[i].AsString(), nil
}

func numberArg(fn string, args []vm.Value, i int) (vm.Number, *vm.VMError) {
	if i >= len(args) {
		return vm.Number{}, vm.Errorf(vm.RuntimeError, "%s: missing argument %d", fn, i+1)
	}
	n, ok := args[i].ToNumber()
	if !ok {
		return vm.Number{}, vm.Errorf(vm.TypeError, "%s: argument %d must be a Number, got %s", fn, i+1, args[i].TypeName())
	}
	return n, nil
}
