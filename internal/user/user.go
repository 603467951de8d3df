// Package user defines the users a reminder can be assigned to.
package user

import "errors"

// ErrNotFound is returned when a uid resolves to no user record.
var ErrNotFound = errors.New("user not found")

// User is an individual user of the service.
type User struct {
	UID  int64  `json:"uid"`
	Name string `json:"name"`
}
