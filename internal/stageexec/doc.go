// Package stageexec wraps one workflow invocation with run journal
// bookkeeping and notifications.
package stageexec
