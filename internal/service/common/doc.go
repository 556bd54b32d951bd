// Package common holds helpers shared by several services.
//
// It detects the current system actor (hostname/username) so notifications and
// journal records can tell vehicles apart.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
