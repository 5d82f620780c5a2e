package normalize

import "strings"

type family int

const (
	familyOther family = iota
	familyNumeric
	familyTemporal
	familyDate
	familyTime
	familyBoolean
	familyBinary
	familyUUID
)

var families = map[string]family{
	"NUMERIC": familyNumeric, "DECIMAL": familyNumeric, "DEC": familyNumeric, "NUMBER": familyNumeric,
	"MONEY": familyNumeric, "SMALLMONEY": familyNumeric, "SMALLDECIMAL": familyNumeric, "FIXED": familyNumeric,
	"INT": familyNumeric, "INTEGER": familyNumeric, "BIGINT": familyNumeric, "SMALLINT": familyNumeric,
	"TINYINT": familyNumeric, "MEDIUMINT": familyNumeric, "INT2": familyNumeric, "INT4": familyNumeric,
	"INT8": familyNumeric, "SERIAL": familyNumeric, "BIGSERIAL": familyNumeric, "YEAR": familyNumeric,
	"FLOAT": familyNumeric, "FLOAT4": familyNumeric, "FLOAT8": familyNumeric, "REAL": familyNumeric,
	"DOUBLE": familyNumeric, "DOUBLE PRECISION": familyNumeric,

	"TIMESTAMP": familyTemporal, "TIMESTAMPTZ": familyTemporal, "DATETIME": familyTemporal,
	"DATETIME2": familyTemporal, "SMALLDATETIME": familyTemporal, "DATETIMEOFFSET": familyTemporal,
	"SECONDDATE": familyTemporal, "LONGDATE": familyTemporal,
	"DATE": familyDate, "DAYDATE": familyDate,
	"TIME": familyTime, "TIMETZ": familyTime, "SECONDTIME": familyTime,

	"BOOL": familyBoolean, "BOOLEAN": familyBoolean,

	"BYTEA": familyBinary, "BLOB": familyBinary, "TINYBLOB": familyBinary, "MEDIUMBLOB": familyBinary,
	"LONGBLOB": familyBinary, "BINARY": familyBinary, "VARBINARY": familyBinary, "IMAGE": familyBinary,
	"BIT": familyBinary,

	"UUID": familyUUID, "UNIQUEIDENTIFIER": familyUUID,
}

// familyOf classifies a DatabaseTypeName such as "DECIMAL(10,2)" or
// "UNSIGNED BIGINT". Unknown names map to familyOther.
func familyOf(databaseType string) family {
	name := strings.ToUpper(strings.TrimSpace(databaseType))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	name = strings.TrimPrefix(name, "UNSIGNED ")
	name = strings.TrimSuffix(name, " UNSIGNED")
	if strings.HasPrefix(name, "TIMESTAMP") {
		return familyTemporal
	}
	return families[name]
}
