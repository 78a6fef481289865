package normalize

import (
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
)

// shellConstructors mirror the shell's BSON helpers, returning the same
// marker objects as the rewrite table.
const shellConstructors = `
function ObjectId(s) { return {"$oid": String(s)}; }
function ISODate(s) { return {"$date": String(s)}; }
function NumberLong(s) { return {"$numberLong": String(s)}; }
function NumberDecimal(s) { return {"$numberDecimal": String(s)}; }
function NumberInt(n) { return Number(n); }
function Timestamp(t, i) { return {"$timestamp": {"t": t, "i": i}}; }
function BinData(t, s) { return {"$binary": String(s), "$type": String(t)}; }
function WriteResult(o) { return {"$result": o}; }
`

var errNotLiteral = errors.New("not a literal value")

// jsDecoder evaluates a single line as a JavaScript expression. Each line
// gets a fresh runtime with no host bindings beyond the constructors above,
// so neither globals assigned by one line nor a late interrupt carry over
// to the next.
type jsDecoder struct {
	prelude *goja.Program
}

func newJSDecoder() (*jsDecoder, error) {
	prg, err := goja.Compile("constructors.js", shellConstructors, false)
	if err != nil {
		return nil, fmt.Errorf("compile shell constructors: %w", err)
	}
	return &jsDecoder{prelude: prg}, nil
}

// decode evaluates "(line)" and converts the result to the same Go types a
// strict parse produces.
func (d *jsDecoder) decode(line string, timeout time.Duration) (any, error) {
	vm := goja.New()
	if _, err := vm.RunProgram(d.prelude); err != nil {
		return nil, fmt.Errorf("install shell constructors: %w", err)
	}

	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt("lenient decode timed out")
	})
	defer timer.Stop()

	val, err := vm.RunString("(" + line + "\n)")
	if err != nil {
		return nil, err
	}
	if goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, errNotLiteral
	}
	if _, ok := goja.AssertFunction(val); ok {
		return nil, errNotLiteral
	}

	data, err := sonic.ConfigStd.Marshal(val.Export())
	if err != nil {
		return nil, fmt.Errorf("encode literal: %w", err)
	}
	var v any
	if err := strict.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode literal: %w", err)
	}
	return v, nil
}
