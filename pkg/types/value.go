package types

// DataType declares the wire type of a persisted property value.
type DataType string

// Recognized property data types.
const (
	DataTypeString    DataType = "string"
	DataTypeInt       DataType = "int"
	DataTypeDouble    DataType = "double"
	DataTypeBool      DataType = "bool"
	DataTypeTimestamp DataType = "timestamp"
	DataTypeReference DataType = "reference"
	DataTypeNull      DataType = "null"
)

// validDataTypes is the set of recognized data types.
var validDataTypes = map[DataType]bool{
	DataTypeString:    true,
	DataTypeInt:       true,
	DataTypeDouble:    true,
	DataTypeBool:      true,
	DataTypeTimestamp: true,
	DataTypeReference: true,
	DataTypeNull:      true,
}

// Valid reports whether the data type is recognized.
func (d DataType) Valid() bool {
	return validDataTypes[d]
}

// String returns the data type name.
func (d DataType) String() string {
	return string(d)
}
