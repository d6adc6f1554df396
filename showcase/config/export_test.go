package config

// LoadForTest exposes load with an injectable
// environment lookup.
var LoadForTest = load
