package core

import "errors"

var (
	ErrEmployeeNotFound   = errors.New("employee not found")
	ErrDepartmentNotFound = errors.New("department not found")
	ErrDuplicateEmail     = errors.New("employee email already exists")
)
