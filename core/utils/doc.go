// Package utils provides common utility functions for table-sync.
// It includes helper functions for scalar conversion shared by the reconcile
// core and the desired-state loaders.
package utils
