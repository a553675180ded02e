// Package stage holds the building blocks workflows are composed from: the
// tagged Outcome every sub-workflow returns, and Join, the all-complete
// barrier used for stages launched together.
package stage
