// Package model defines workflows: a kind plus the ordered steps every
// instance of that kind runs.  Instances, step records and the error
// taxonomy live in the instance, step and fault sub-packages.
package model
