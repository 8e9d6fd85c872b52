package workflow

import "github.com/fxamacker/cbor/v2"

// Step results are stored as deterministic CBOR so identical results encode
// to identical bytes.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("workflow: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("workflow: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodeResult(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func decodeResult(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
