// Package grib decodes compressed gridded radar payloads into classified
// radar points.
//
// Payloads are GRIB edition 2 files, optionally gzip-compressed. The parser
// understands the subset used by radar mosaics: regular latitude/longitude
// grids (grid template 3.0), simple packing (data template 5.0), PNG packing
// (data template 5.41) and bitmaps (section 6). Each data section yields one
// [Field] with parallel value, latitude and longitude arrays. Fields on other
// grids or with other packings are reported without the arrays they could not
// produce and are skipped by the [Decoder].
//
// Geospatial handling is deliberately simplified: coordinates are computed
// from the first grid point and the increments, with no projection support.
package grib
