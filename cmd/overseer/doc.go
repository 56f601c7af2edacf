// Command overseer lists and toggles port reservations of Xena chassis.
//
// Usage:
//
//	overseer list [ADDR...]            show every port of each chassis
//	overseer toggle ADDR M/P           reserve, release or relinquish one port
//	overseer simulate --listen ADDR    run an in-process chassis simulator
//
// Addresses are literal "ip:port" socket addresses. Defaults can be kept in a TOML file
// passed with --config; flags override file values.
package main
