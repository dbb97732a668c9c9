package grib

import (
	"fmt"
	"strings"
)

type paramKey struct {
	discipline, category, number uint8
}

// parameterNames covers the NCEP and MRMS (discipline 209) products this
// service reads.
var parameterNames = map[paramKey]string{
	{0, 1, 7}:    "PRATE",
	{0, 1, 8}:    "APCP",
	{0, 16, 195}: "REFD",
	{0, 16, 196}: "REFC",
	{209, 6, 1}:  "PrecipRate",
	{209, 9, 0}:  "MergedReflectivityQC",
	{209, 10, 0}: "MergedReflectivityQCComposite",
	{209, 10, 1}: "BREF_1HR_MAX",
	{209, 10, 2}: "MergedBaseReflectivityQC",
}

// ParameterName returns the short name of a product, or D{d}_C{c}_P{n} when
// the product is not in the table.
func ParameterName(discipline, category, number uint8) string {
	if name, ok := parameterNames[paramKey{discipline, category, number}]; ok {
		return name
	}
	return fmt.Sprintf("D%d_C%d_P%d", discipline, category, number)
}

// ParameterCodes is the reverse lookup of ParameterName for table entries.
func ParameterCodes(name string) (discipline, category, number uint8, ok bool) {
	for k, v := range parameterNames {
		if v == name {
			return k.discipline, k.category, k.number, true
		}
	}
	return 0, 0, 0, false
}

// IsReflectivity reports whether a field already carries dBZ values.
func IsReflectivity(name string) bool {
	u := strings.ToUpper(name)
	return strings.Contains(u, "REF") || strings.Contains(u, "DBZ")
}
