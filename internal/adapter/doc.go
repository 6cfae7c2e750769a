// Package adapter binds the application ports to the persistence layer. It
// owns the mapping between typed domain enums and their stored codes and
// between decimal amounts and stored cents.
package adapter
