package toncenter

import "encoding/json"

// DTOs raw del gateway de get-methods. Solo se usan dentro de este paquete.
// La conversión a domain records se hace en mapping.go.

// Tipos de entrada de stack que devuelve el gateway.
const (
	stackNum     = "num"
	stackAddress = "address"
	stackString  = "string"
	stackNull    = "null"
	stackTuple   = "tuple"
)

// stackEntry es un valor TVM ya decodificado por el gateway.
// Value es un string para num/address/string, null o un array de stackEntry para tuple.
type stackEntry struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// runGetMethodRequest es el body de POST /runGetMethod.
type runGetMethodRequest struct {
	Address string       `json:"address"`
	Method  string       `json:"method"`
	Stack   []stackEntry `json:"stack"`
}

// runGetMethodResponse es la respuesta de POST /runGetMethod.
type runGetMethodResponse struct {
	ExitCode int          `json:"exit_code"`
	Stack    []stackEntry `json:"stack"`
}

func numArg(v int64) stackEntry {
	b, _ := json.Marshal(formatInt(v))
	return stackEntry{Type: stackNum, Value: b}
}

func addressArg(addr string) stackEntry {
	b, _ := json.Marshal(addr)
	return stackEntry{Type: stackAddress, Value: b}
}
