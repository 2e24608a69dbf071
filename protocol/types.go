package protocol

import "fmt"

// Type is the single byte prefix that identifies a value on the wire.
type Type byte

const (
	TypeSimpleString   Type = '+'
	TypeSimpleError    Type = '-'
	TypeInteger        Type = ':'
	TypeDouble         Type = ','
	TypeBoolean        Type = '#'
	TypeNull           Type = '_'
	TypeBigNumber      Type = '('
	TypeBulkString     Type = '$'
	TypeVerbatimString Type = '='
	TypeBlobError      Type = '!'
	TypeArray          Type = '*'
	TypeMap            Type = '%'
	TypeSet            Type = '~'
	TypePush           Type = '>'
)

var typeNames = [256]string{
	TypeSimpleString:   "SimpleString",
	TypeSimpleError:    "SimpleError",
	TypeInteger:        "Integer",
	TypeDouble:         "Double",
	TypeBoolean:        "Boolean",
	TypeNull:           "Null",
	TypeBigNumber:      "BigNumber",
	TypeBulkString:     "BulkString",
	TypeVerbatimString: "VerbatimString",
	TypeBlobError:      "BlobError",
	TypeArray:          "Array",
	TypeMap:            "Map",
	TypeSet:            "Set",
	TypePush:           "Push",
}

// Valid reports whether t is one of the known tags.
func (t Type) Valid() bool {
	return typeNames[t] != ""
}

// IsAggregate reports whether values of type t contain child messages.
func (t Type) IsAggregate() bool {
	switch t {
	case TypeArray, TypeMap, TypeSet, TypePush:
		return true
	}

	return false
}

// String implements the fmt.Stringer interface.
func (t Type) String() string {
	if name := typeNames[t]; name != "" {
		return name
	}

	return fmt.Sprintf("Type(%q)", byte(t))
}
