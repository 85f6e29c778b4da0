// Package extension registers pluggable mapper implementations and
// their typed configuration structs. Mapper types are recorded in a
// viant/x registry so profiles can name them symbolically; raw profile
// maps are converted into the registered config types before a mapper
// factory runs.
package extension
