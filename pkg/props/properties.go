package props

import "fmt"

// Properties is the canonical payload delivered to every sink.
type Properties map[string]Value

func (p Properties) Get(key string) (Value, bool) {
	v, ok := p[key]
	return v, ok
}

// Clone returns a shallow copy; nested arrays and objects are shared.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func (p Properties) Equal(o Properties) bool {
	if len(p) != len(o) {
		return false
	}
	for k, v := range p {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Interface converts p into a plain map suitable for encoding/json or
// third-party SDKs that take map[string]any.
func (p Properties) Interface() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v.Interface()
	}
	return out
}

func (p Properties) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return Object(p).MarshalJSON()
}

func (p *Properties) UnmarshalJSON(data []byte) error {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	obj, ok := v.AsObject()
	if !ok {
		return fmt.Errorf("props: cannot unmarshal %s into Properties", v.Kind())
	}
	*p = obj
	return nil
}

// String renders p as compact JSON with sorted keys.
func (p Properties) String() string { return Object(p).String() }
