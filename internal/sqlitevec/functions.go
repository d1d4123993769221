package sqlitevec

import (
	"database/sql/driver"
	"fmt"
	"sync"

	sqlite "modernc.org/sqlite"
)

var registerOnce sync.Once
var registerErr error

// registerFunctions makes vec_l2 available on connections opened afterwards.
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterDeterministicScalarFunction("vec_l2", 2, vecL2)
	})
	return registerErr
}

func vecL2(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vec_l2: expected 2 arguments, got %d", len(args))
	}
	a, ok := args[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("vec_l2: unsupported argument type %T; want BLOB", args[0])
	}
	b, ok := args[1].([]byte)
	if !ok {
		return nil, fmt.Errorf("vec_l2: unsupported argument type %T; want BLOB", args[1])
	}
	va, err := DecodeVector(a)
	if err != nil {
		return nil, err
	}
	vb, err := DecodeVector(b)
	if err != nil {
		return nil, err
	}
	return L2Distance(va, vb)
}
