package modules

import (
	"os"

	"github.com/funvibe/rigz/internal/vm"
)

// File wraps the small filesystem surface scripts get: whole-file reads
// and writes plus existence checks.
func File() *NativeModule {
	m := NewNativeModule("File")
	m.Fn("read(path) -> String", fileRead)
	m.Fn("write(path, content) -> None", fileWrite)
	m.Fn("exists(path) -> Bool", fileExists)
	m.Fn("delete(path) -> None", fileDelete)
	return m
}

func fileRead(args []vm.Value) (vm.Value, *vm.VMError) {
	path, err := stringArg("File.read", args, 0)
	if err != nil {
		return vm.None(), err
	}
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return vm.None(), vm.Errorf(vm.RuntimeError, "File.read: %s", readErr)
	}
	return vm.StringValue(string(data)), nil
}

func fileWrite(args []vm.Value) (vm.Value, *vm.VMError) {
	path, err := stringArg("File.write", args, 0)
	if err != nil {
		return vm.None(), err
	}
	if err := exactArgs("File.write", args, 2); err != nil {
		return vm.None(), err
	}
	if writeErr := os.WriteFile(path, []byte(args[1].String()), 0o644); writeErr != nil {
		return vm.None(), vm.Errorf(vm.RuntimeError, "File.write: %s", writeErr)
	}
	return vm.None(), nil
}

func fileExists(args []vm.Value) (vm.Value, *vm.VMError) {
	path, err := stringArg("File.exists", args, 0)
	if err != nil {
		return vm.None(), err
	}
	_, statErr := os.Stat(path)
	return vm.BoolValue(statErr == nil), nil
}

func fileDelete(args []vm.Value) (vm.Value, *vm.VMError) {
	path, err := stringArg("File.delete", args, 0)
	if err != nil {
		return vm.None(), err
	}
	if rmErr := os.Remove(path); rmErr != nil {
		return vm.None(), vm.Errorf(vm.RuntimeError, "File.delete: %s", rmErr)
	}
	return vm.None(), nil
}
