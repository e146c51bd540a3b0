package h5writer

import (
	"reflect"

	"github.com/scigolib/h5writer/internal/core"
	"github.com/scigolib/h5writer/internal/utils"
)

// toValue converts Go data into the codec's value tree.
//
// Slices and arrays become rows, recursively. Scalars keep their Go kind,
// so an int32 variable needs int32 data. A Record or a struct becomes a
// compound element; an Object becomes a reference.
func toValue(data interface{}) (core.Value, error) {
	if data == nil {
		return nil, utils.SchemaError("data", "nil value")
	}
	return reflectValue(reflect.ValueOf(data))
}

var objectType = reflect.TypeOf((*Object)(nil)).Elem()

func reflectValue(rv reflect.Value) (core.Value, error) {
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, utils.SchemaError("data", "nil element")
		}
		rv = rv.Elem()
	}

	if rv.Type().Implements(objectType) {
		if rv.Kind() == reflect.Ptr && rv.IsNil() {
			return nil, utils.SchemaError("data", "nil object reference")
		}
		obj, _ := rv.Interface().(Object)
		return core.Ref(obj.block()), nil
	}

	switch rv.Kind() {
	case reflect.Int8:
		return core.Int(core.KindInt8, rv.Int()), nil
	case reflect.Uint8:
		return core.Int(core.KindUint8, int64(rv.Uint())), nil
	case reflect.Int16:
		return core.Int(core.KindInt16, rv.Int()), nil
	case reflect.Int32:
		return core.Int(core.KindInt32, rv.Int()), nil
	case reflect.Int64, reflect.Int:
		return core.Int(core.KindInt64, rv.Int()), nil
	case reflect.Float32:
		return core.Float(core.KindFloat32, rv.Float()), nil
	case reflect.Float64:
		return core.Float(core.KindFloat64, rv.Float()), nil
	case reflect.String:
		return core.String(rv.String()), nil

	case reflect.Slice, reflect.Array:
		row := make(core.Row, rv.Len())
		for i := range row {
			v, err := reflectValue(rv.Index(i))
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		return row, nil

	case reflect.Struct:
		row := make(core.Row, 0, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			if !rv.Type().Field(i).IsExported() {
				continue
			}
			v, err := reflectValue(rv.Field(i))
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		return row, nil
	}
	return nil, utils.SchemaError("data", "unsupported Go type %s", rv.Type())
}
