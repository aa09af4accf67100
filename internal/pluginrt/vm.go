// Package pluginrt is the in-process bytecode runtime: the stack machine
// that executes a parsed pkg/pluginapi.Program, the capability-gated host
// function surface it calls out to, and the manifest-driven discovery/load
// lifecycle around it. Grounded on the teacher's internal/plugin/* lifecycle
// split (manager/sandbox/loader), generalized from its wasm/grpc transports
// to this custom interpreter.
package pluginrt

import (
	"context"
	"fmt"

	"github.com/raibid-labs/scryhub/pkg/pluginapi"
)

// HostFunctions is the capability-gated surface a running program can call
// into. Implemented by Sandbox (internal/pluginrt/sandbox.go), which wraps a
// DefaultHostFunctions (internal/pluginrt/hostapi.go) with per-capability
// checks.
type HostFunctions interface {
	HTTPGet(ctx context.Context, url string, headers map[string]string) (HTTPResponse, error)
	HTTPPost(ctx context.Context, url string, headers map[string]string, body string) (HTTPResponse, error)
	GetCredential(ctx context.Context, providerID string) (string, error)
	CacheGet(ctx context.Context, key string) (Value, bool, error)
	CacheSet(ctx context.Context, key string, value Value, ttlSeconds int) error
	Log(ctx context.Context, level, message string) error
	NowMillis(ctx context.Context) (int64, error)
	EvalScript(ctx context.Context, source string, scope map[string]Value) (Value, error)
}

// HTTPResponse is the host's response to http_get/http_post.
type HTTPResponse struct {
	Status  int
	Headers map[string]string
	Body    string
}

// VM interprets one Program's functions against a HostFunctions
// implementation. It holds no concurrency-safety of its own — one VM
// instance belongs to exactly one in-flight plugin invocation.
type VM struct {
	program Program
	host    HostFunctions
	globals map[string]Value
}

// Program bundles the parsed bytecode with its constant pool resolved into
// runtime Values once, rather than on every LoadConst.
type Program struct {
	pluginapi.Program
	consts []Value
}

// NewProgram resolves a parsed pluginapi.Program's constant pool.
func NewProgram(p pluginapi.Program) (Program, error) {
	consts := make([]Value, len(p.Constants))
	for i, c := range p.Constants {
		v, err := resolveConstant(c)
		if err != nil {
			return Program{}, fmt.Errorf("constant %d: %w", i, err)
		}
		consts[i] = v
	}
	return Program{Program: p, consts: consts}, nil
}

func resolveConstant(c pluginapi.Constant) (Value, error) {
	switch c.Type {
	case pluginapi.ConstNull:
		return nil, nil
	case pluginapi.ConstBool, pluginapi.ConstInt, pluginapi.ConstFloat, pluginapi.ConstString:
		return c.Value, nil
	default:
		return nil, fmt.Errorf("unknown constant kind %q", c.Type)
	}
}

// New returns a VM ready to run Program's functions against host.
func New(p Program, host HostFunctions) *VM {
	return &VM{program: p, host: host, globals: make(map[string]Value)}
}

// Run executes the program's declared entry point with args bound
// positionally to its parameters.
func (vm *VM) Run(ctx context.Context, args ...Value) (Value, error) {
	return vm.Call(ctx, vm.program.EntryPoint, args)
}

// Call executes a single named function to completion and returns its
// result (nil if it falls off the end without an explicit Return).
func (vm *VM) Call(ctx context.Context, name string, args []Value) (Value, error) {
	fn, ok := vm.lookupFunction(name)
	if !ok {
		return nil, fmt.Errorf("pluginrt: function %q not found", name)
	}
	return vm.exec(ctx, fn, args)
}

func (vm *VM) lookupFunction(name string) (pluginapi.Function, bool) {
	for _, f := range vm.program.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return pluginapi.Function{}, false
}

const maxCallDepth = 256

func (vm *VM) exec(ctx context.Context, fn pluginapi.Function, args []Value) (Value, error) {
	return vm.execDepth(ctx, fn, args, 0)
}

func (vm *VM) execDepth(ctx context.Context, fn pluginapi.Function, args []Value, depth int) (Value, error) {
	if depth > maxCallDepth {
		return nil, fmt.Errorf("pluginrt: call stack too deep (>%d)", maxCallDepth)
	}

	locals := make([]Value, fn.LocalCount)
	for i := range args {
		if i >= len(locals) {
			break
		}
		locals[i] = args[i]
	}

	var stack []Value
	push := func(v Value) { stack = append(stack, v) }
	pop := func() (Value, error) {
		if len(stack) == 0 {
			return nil, fmt.Errorf("pluginrt: stack underflow in %s", fn.Name)
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, nil
	}

	pc := 0
	for pc < len(fn.Instructions) {
		in := fn.Instructions[pc]
		switch in.Op {
		case pluginapi.OpLoadConst:
			if in.Index < 0 || in.Index >= len(vm.program.consts) {
				return nil, fmt.Errorf("pluginrt: const index %d out of range", in.Index)
			}
			push(vm.program.consts[in.Index])
		case pluginapi.OpLoadLocal:
			if in.Index < 0 || in.Index >= len(locals) {
				return nil, fmt.Errorf("pluginrt: local index %d out of range", in.Index)
			}
			push(locals[in.Index])
		case pluginapi.OpStoreLocal:
			v, err := pop()
			if err != nil {
				return nil, err
			}
			if in.Index < 0 || in.Index >= len(locals) {
				return nil, fmt.Errorf("pluginrt: local index %d out of range", in.Index)
			}
			locals[in.Index] = v
		case pluginapi.OpLoadGlobal:
			push(vm.globals[in.Name])
		case pluginapi.OpStoreGlobal:
			v, err := pop()
			if err != nil {
				return nil, err
			}
			vm.globals[in.Name] = v
		case pluginapi.OpPop:
			if _, err := pop(); err != nil {
				return nil, err
			}
		case pluginapi.OpDup:
			if len(stack) == 0 {
				return nil, fmt.Errorf("pluginrt: dup on empty stack")
			}
			push(stack[len(stack)-1])
		case pluginapi.OpAdd, pluginapi.OpSub, pluginapi.OpMul, pluginapi.OpDiv:
			if err := vm.binaryArith(in.Op, &stack); err != nil {
				return nil, err
			}
		case pluginapi.OpEq, pluginapi.OpNe:
			b, err := pop()
			if err != nil {
				return nil, err
			}
			a, err := pop()
			if err != nil {
				return nil, err
			}
			eq := equalValues(a, b)
			if in.Op == pluginapi.OpNe {
				eq = !eq
			}
			push(eq)
		case pluginapi.OpLt, pluginapi.OpLe, pluginapi.OpGt, pluginapi.OpGe:
			if err := vm.compare(in.Op, &stack); err != nil {
				return nil, err
			}
		case pluginapi.OpNot:
			v, err := pop()
			if err != nil {
				return nil, err
			}
			push(!truthy(v))
		case pluginapi.OpAnd:
			b, err := pop()
			if err != nil {
				return nil, err
			}
			a, err := pop()
			if err != nil {
				return nil, err
			}
			push(truthy(a) && truthy(b))
		case pluginapi.OpOr:
			b, err := pop()
			if err != nil {
				return nil, err
			}
			a, err := pop()
			if err != nil {
				return nil, err
			}
			push(truthy(a) || truthy(b))
		case pluginapi.OpJump:
			pc = in.Target
			continue
		case pluginapi.OpJumpIfFalse:
			v, err := pop()
			if err != nil {
				return nil, err
			}
			if !truthy(v) {
				pc = in.Target
				continue
			}
		case pluginapi.OpMakeArray:
			arr := make([]Value, in.Count)
			for i := in.Count - 1; i >= 0; i-- {
				v, err := pop()
				if err != nil {
					return nil, err
				}
				arr[i] = v
			}
			push(arr)
		case pluginapi.OpMakeObject:
			obj := make(map[string]Value, in.Count)
			for i := 0; i < in.Count; i++ {
				v, err := pop()
				if err != nil {
					return nil, err
				}
				k, err := pop()
				if err != nil {
					return nil, err
				}
				ks, ok := k.(string)
				if !ok {
					return nil, fmt.Errorf("pluginrt: object key must be a string, got %T", k)
				}
				obj[ks] = v
			}
			push(obj)
		case pluginapi.OpGetProperty:
			recv, err := pop()
			if err != nil {
				return nil, err
			}
			obj, ok := recv.(map[string]Value)
			if !ok {
				return nil, fmt.Errorf("pluginrt: get_property on non-object %T", recv)
			}
			push(obj[in.Name])
		case pluginapi.OpSetProperty:
			val, err := pop()
			if err != nil {
				return nil, err
			}
			recv, err := pop()
			if err != nil {
				return nil, err
			}
			obj, ok := recv.(map[string]Value)
			if !ok {
				return nil, fmt.Errorf("pluginrt: set_property on non-object %T", recv)
			}
			obj[in.Name] = val
			push(obj)
		case pluginapi.OpGetIndex:
			idx, err := pop()
			if err != nil {
				return nil, err
			}
			recv, err := pop()
			if err != nil {
				return nil, err
			}
			arr, ok := recv.([]Value)
			if !ok {
				return nil, fmt.Errorf("pluginrt: get_index on non-array %T", recv)
			}
			i, err := asFloat(idx)
			if err != nil {
				return nil, err
			}
			ii := int(i)
			if ii < 0 || ii >= len(arr) {
				return nil, fmt.Errorf("pluginrt: index %d out of range", ii)
			}
			push(arr[ii])
		case pluginapi.OpSetIndex:
			val, err := pop()
			if err != nil {
				return nil, err
			}
			idx, err := pop()
			if err != nil {
				return nil, err
			}
			recv, err := pop()
			if err != nil {
				return nil, err
			}
			arr, ok := recv.([]Value)
			if !ok {
				return nil, fmt.Errorf("pluginrt: set_index on non-array %T", recv)
			}
			i, err := asFloat(idx)
			if err != nil {
				return nil, err
			}
			ii := int(i)
			if ii < 0 || ii >= len(arr) {
				return nil, fmt.Errorf("pluginrt: index %d out of range", ii)
			}
			arr[ii] = val
			push(arr)
		case pluginapi.OpCall:
			args := make([]Value, in.Count)
			for i := in.Count - 1; i >= 0; i-- {
				v, err := pop()
				if err != nil {
					return nil, err
				}
				args[i] = v
			}
			result, err := vm.dispatchCall(ctx, in.Name, args, depth)
			if err != nil {
				return nil, err
			}
			push(result)
		case pluginapi.OpCallMethod:
			args := make([]Value, in.Count)
			for i := in.Count - 1; i >= 0; i-- {
				v, err := pop()
				if err != nil {
					return nil, err
				}
				args[i] = v
			}
			recv, err := pop()
			if err != nil {
				return nil, err
			}
			result, err := vm.dispatchMethod(ctx, recv, in.Name, args)
			if err != nil {
				return nil, err
			}
			push(result)
		case pluginapi.OpAwait:
			// Host functions are synchronous in this runtime; await is a
			// structural marker left by the compiler and requires no work.
		case pluginapi.OpReturn:
			if len(stack) == 0 {
				return nil, nil
			}
			return stack[len(stack)-1], nil
		case pluginapi.OpNop:
			// no-op
		default:
			return nil, fmt.Errorf("pluginrt: unknown opcode %q", in.Op)
		}
		pc++
	}
	if len(stack) == 0 {
		return nil, nil
	}
	return stack[len(stack)-1], nil
}

func (vm *VM) binaryArith(op pluginapi.Op, stack *[]Value) error {
	s := *stack
	if len(s) < 2 {
		return fmt.Errorf("pluginrt: stack underflow in arithmetic")
	}
	b, a := s[len(s)-1], s[len(s)-2]
	*stack = s[:len(s)-2]

	if op == pluginapi.OpAdd {
		if as, ok := a.(string); ok {
			bs, ok := b.(string)
			if !ok {
				return fmt.Errorf("pluginrt: cannot add string and %T", b)
			}
			*stack = append(*stack, as+bs)
			return nil
		}
	}
	af, err := asFloat(a)
	if err != nil {
		return err
	}
	bf, err := asFloat(b)
	if err != nil {
		return err
	}
	var r float64
	switch op {
	case pluginapi.OpAdd:
		r = af + bf
	case pluginapi.OpSub:
		r = af - bf
	case pluginapi.OpMul:
		r = af * bf
	case pluginapi.OpDiv:
		if bf == 0 {
			return fmt.Errorf("pluginrt: division by zero")
		}
		r = af / bf
	}
	*stack = append(*stack, r)
	return nil
}

func (vm *VM) compare(op pluginapi.Op, stack *[]Value) error {
	s := *stack
	if len(s) < 2 {
		return fmt.Errorf("pluginrt: stack underflow in comparison")
	}
	b, a := s[len(s)-1], s[len(s)-2]
	*stack = s[:len(s)-2]
	af, err := asFloat(a)
	if err != nil {
		return err
	}
	bf, err := asFloat(b)
	if err != nil {
		return err
	}
	var r bool
	switch op {
	case pluginapi.OpLt:
		r = af < bf
	case pluginapi.OpLe:
		r = af <= bf
	case pluginapi.OpGt:
		r = af > bf
	case pluginapi.OpGe:
		r = af >= bf
	}
	*stack = append(*stack, r)
	return nil
}

// dispatchCall resolves a Call instruction's target name: another function
// declared in the same program takes priority, falling back to the host
// function surface.
func (vm *VM) dispatchCall(ctx context.Context, name string, args []Value, depth int) (Value, error) {
	if fn, ok := vm.lookupFunction(name); ok {
		return vm.execDepth(ctx, fn, args, depth+1)
	}
	return vm.callHost(ctx, name, args)
}

func (vm *VM) callHost(ctx context.Context, name string, args []Value) (Value, error) {
	switch name {
	case "http_get":
		url, headers, err := httpArgs(args, false)
		if err != nil {
			return nil, err
		}
		resp, err := vm.host.HTTPGet(ctx, url, headers)
		if err != nil {
			return nil, err
		}
		return httpResponseValue(resp), nil
	case "http_post":
		url, headers, body, err := httpPostArgs(args)
		if err != nil {
			return nil, err
		}
		resp, err := vm.host.HTTPPost(ctx, url, headers, body)
		if err != nil {
			return nil, err
		}
		return httpResponseValue(resp), nil
	case "get_credential":
		providerID, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return vm.host.GetCredential(ctx, providerID)
	case "cache_get":
		key, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		v, found, err := vm.host.CacheGet(ctx, key)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		return v, nil
	case "cache_set":
		key, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		ttl := -1 // no ttl arg: persist with no expiry
		if len(args) > 2 {
			f, err := asFloat(args[2])
			if err != nil {
				return nil, err
			}
			ttl = int(f)
		}
		var val Value
		if len(args) > 1 {
			val = args[1]
		}
		return nil, vm.host.CacheSet(ctx, key, val, ttl)
	case "log":
		level, message := "info", ""
		if len(args) > 0 {
			if s, ok := args[0].(string); ok {
				level = s
			}
		}
		if len(args) > 1 {
			if s, ok := args[1].(string); ok {
				message = s
			}
		}
		return nil, vm.host.Log(ctx, level, message)
	case "now_millis":
		return vm.host.NowMillis(ctx)
	case "eval_script":
		source, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		scope := map[string]Value{}
		if len(args) > 1 {
			if m, ok := args[1].(map[string]Value); ok {
				scope = m
			}
		}
		return vm.host.EvalScript(ctx, source, scope)
	default:
		return nil, fmt.Errorf("pluginrt: unknown function %q", name)
	}
}

func (vm *VM) dispatchMethod(ctx context.Context, recv Value, name string, args []Value) (Value, error) {
	// A method call requires the receiver to be an object carrying a field
	// of that name; it then dispatches to the host function of the same
	// name with the receiver prepended to the arguments. A missing field is
	// an error rather than a silent no-op, so authors notice a typo'd method
	// name immediately.
	obj, ok := recv.(map[string]Value)
	if !ok {
		return nil, fmt.Errorf("pluginrt: call_method on non-object %T", recv)
	}
	if _, exists := obj[name]; !exists {
		return nil, fmt.Errorf("pluginrt: object has no method %q", name)
	}
	return vm.callHost(ctx, name, append([]Value{recv}, args...))
}

func httpResponseValue(r HTTPResponse) Value {
	headers := make(map[string]Value, len(r.Headers))
	for k, v := range r.Headers {
		headers[k] = v
	}
	return map[string]Value{
		"status":  float64(r.Status),
		"headers": headers,
		"body":    r.Body,
	}
}

func stringArg(args []Value, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("pluginrt: missing argument %d", i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("pluginrt: argument %d must be a string, got %T", i, args[i])
	}
	return s, nil
}

func httpArgs(args []Value, _ bool) (string, map[string]string, error) {
	url, err := stringArg(args, 0)
	if err != nil {
		return "", nil, err
	}
	headers := map[string]string{}
	if len(args) > 1 {
		if m, ok := args[1].(map[string]Value); ok {
			for k, v := range m {
				if s, ok := v.(string); ok {
					headers[k] = s
				}
			}
		}
	}
	return url, headers, nil
}

func httpPostArgs(args []Value) (string, map[string]string, string, error) {
	url, headers, err := httpArgs(args, true)
	if err != nil {
		return "", nil, "", err
	}
	body := ""
	if len(args) > 2 {
		if s, ok := args[2].(string); ok {
			body = s
		}
	}
	return url, headers, body, nil
}
