// Package appconfig is a process-wide item store for application settings.
//
// Items live either in process memory (Local) or in a remote key-value
// store (Remote, see package kv). Register records per-item metadata that
// decides where the value lives, whether local reads and writes alias the
// caller's value or copy it, whether Set may change it, and how many seconds
// it lives after each write. Names written with Set alone use the default
// policy: local, by reference, mutable, no expiry.
//
// Expiry is not driven by a timer. Every public call first reaps the items
// whose deadline has passed, so an expired item disappears on the next call
// after its deadline.
//
// Config also fronts the process environment through Getenv, Setenv,
// DeleteEnv and EnvHas, guarded by their own lock.
package appconfig
