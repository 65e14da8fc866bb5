package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/NethermindEth/rpcpeer/utils"
)

var (
	contextInterface = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorPtrType     = reflect.TypeOf(&Error{})
	resultType       = reflect.TypeOf(Result{})
)

type Parameter struct {
	Name     string
	Optional bool
	// Variadic collects every remaining positional param into the handler's
	// slice argument. Only the last parameter may be variadic; it may be
	// omitted.
	Variadic bool
}

type Method struct {
	Name    string
	Params  []Parameter
	Handler any

	// The method takes a context as its first parameter.
	// Set upon successful registration.
	needsContext bool
}

type Validator interface {
	Struct(any) error
}

// Methods is a Handler dispatching requests by method name to plain Go
// functions. Parameters are bound from positional or named params.
type Methods struct {
	methods   map[string]Method
	validator Validator
}

func NewMethods() *Methods {
	return &Methods{methods: make(map[string]Method)}
}

// WithValidator registers a validator to validate handler struct arguments
func (m *Methods) WithValidator(validator Validator) *Methods {
	m.validator = validator
	return m
}

// RegisterMethod verifies and registers a method.
//
// - Name is the method name
// - Handler is the function called when a request for the method is received.
// It may take a context.Context first and must return (T, *jsonrpc.Error).
// When T is jsonrpc.Result the handler can return NoResponse.
// - Params are the names of the non-context parameters in the order that they
// are expected by the handler
func (m *Methods) RegisterMethod(method Method) error {
	if _, found := m.methods[method.Name]; found {
		return fmt.Errorf("method %q already registered", method.Name)
	}
	handlerT := reflect.TypeOf(method.Handler)
	if handlerT == nil || handlerT.Kind() != reflect.Func {
		return errors.New("handler must be a function")
	}
	numArgs := handlerT.NumIn()
	if numArgs > 0 {
		if handlerT.In(0).Implements(contextInterface) {
			numArgs--
			method.needsContext = true
		}
	}
	if numArgs != len(method.Params) {
		return errors.New("number of non-context function params and param names must match")
	}
	for i, param := range method.Params {
		if !param.Variadic {
			continue
		}
		if i != len(method.Params)-1 {
			return errors.New("only the last param can be variadic")
		}
		if handlerT.In(handlerT.NumIn()-1).Kind() != reflect.Slice {
			return errors.New("variadic param must be a slice")
		}
	}
	if handlerT.NumOut() != 2 {
		return errors.New("handler must return 2 values")
	}
	if handlerT.Out(1) != errorPtrType {
		return errors.New("second return value must be a *jsonrpc.Error")
	}

	m.methods[method.Name] = method
	return nil
}

// Names returns the registered method names in sorted order.
func (m *Methods) Names() []string {
	names := make([]string, 0, len(m.methods))
	for name := range m.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Methods) Method(name string) (Method, bool) {
	method, found := m.methods[name]
	return method, found
}

func (m *Methods) Handle(ctx context.Context, req *Request) (Result, error) {
	calledMethod, found := m.methods[req.Method]
	if !found {
		return Result{}, Err(MethodNotFound, nil)
	}

	args, err := m.buildArguments(ctx, req.Params, calledMethod)
	if err != nil {
		return Result{}, Err(InvalidParams, err.Error())
	}

	tuple := reflect.ValueOf(calledMethod.Handler).Call(args)
	if errAny := tuple[1].Interface(); !utils.IsNil(errAny) {
		return Result{}, errAny.(*Error)
	}

	if tuple[0].Type() == resultType {
		return tuple[0].Interface().(Result), nil
	}
	return Reply(tuple[0].Interface()), nil
}

func (m *Methods) buildArguments(ctx context.Context, params json.RawMessage, method Method) ([]reflect.Value, error) {
	handlerType := reflect.TypeOf(method.Handler)
	numArgs := handlerType.NumIn()
	args := make([]reflect.Value, 0, numArgs)
	addContext := 0

	if method.needsContext {
		args = append(args, reflect.ValueOf(ctx))
		addContext = 1
	}

	params = bytes.TrimSpace(params)
	if len(params) == 0 || isJSONNull(params) {
		for _, param := range method.Params {
			if !param.Optional && !param.Variadic {
				return nil, errors.New("missing non-optional param field")
			}
		}
		for i := range method.Params {
			args = append(args, reflect.New(handlerType.In(i+addContext)).Elem())
		}
		return args, nil
	}

	switch params[0] {
	case '[':
		var paramsList []json.RawMessage
		if err := json.Unmarshal(params, &paramsList); err != nil {
			return nil, err
		}

		variadic := len(method.Params) > 0 && method.Params[len(method.Params)-1].Variadic
		if !variadic && len(paramsList) > len(method.Params) {
			return nil, errors.New("missing/unexpected params in list")
		}

		for i, configuredParam := range method.Params {
			var v reflect.Value
			if configuredParam.Variadic {
				rest := make([]json.RawMessage, 0, max(len(paramsList)-i, 0))
				if i < len(paramsList) {
					rest = append(rest, paramsList[i:]...)
				}
				restJSON, err := json.Marshal(rest)
				if err != nil {
					return nil, err
				}
				v, err = m.parseParam(restJSON, handlerType.In(i+addContext))
				if err != nil {
					return nil, err
				}
			} else if i < len(paramsList) {
				var err error
				v, err = m.parseParam(paramsList[i], handlerType.In(i+addContext))
				if err != nil {
					return nil, err
				}
			} else if configuredParam.Optional {
				v = reflect.New(handlerType.In(i + addContext)).Elem()
			} else {
				return nil, errors.New("missing/unexpected params in list")
			}
			args = append(args, v)
		}
	case '{':
		var paramsMap map[string]json.RawMessage
		if err := json.Unmarshal(params, &paramsMap); err != nil {
			return nil, err
		}

		for i, configuredParam := range method.Params {
			var v reflect.Value
			if param, found := paramsMap[configuredParam.Name]; found {
				var err error
				v, err = m.parseParam(param, handlerType.In(i+addContext))
				if err != nil {
					return nil, err
				}
			} else if configuredParam.Optional || configuredParam.Variadic {
				// optional parameter
				v = reflect.New(handlerType.In(i + addContext)).Elem()
			} else {
				return nil, errors.New("missing non-optional param")
			}

			args = append(args, v)
		}
	default:
		return nil, errors.New("params should be an array or an object")
	}
	return args, nil
}

func (m *Methods) parseParam(param json.RawMessage, t reflect.Type) (reflect.Value, error) {
	handlerParam := reflect.New(t)
	dec := json.NewDecoder(bytes.NewReader(param))
	dec.UseNumber()
	if err := dec.Decode(handlerParam.Interface()); err != nil {
		return reflect.Value{}, err
	}

	elem := handlerParam.Elem()
	if m.validator != nil {
		if err := m.validateParam(elem); err != nil {
			return reflect.Value{}, err
		}
	}

	return elem, nil
}

func (m *Methods) validateParam(param reflect.Value) error {
	kind := param.Kind()
	switch {
	case kind == reflect.Struct ||
		(kind == reflect.Pointer && !param.IsNil() && param.Elem().Kind() == reflect.Struct):
		/* struct or a struct pointer */
		if err := m.validator.Struct(param.Interface()); err != nil {
			return err
		}
	case kind == reflect.Slice || kind == reflect.Array:
		for i := 0; i < param.Len(); i++ {
			if err := m.validateParam(param.Index(i)); err != nil {
				return err
			}
		}
	case kind == reflect.Map:
		for _, key := range param.MapKeys() {
			if err := m.validateParam(param.MapIndex(key)); err != nil {
				return err
			}
		}
	}

	return nil
}
