// Package domain defines the core types of the supervisor: worker roles,
// the deployed topology, launched process records, and the signal
// escalation policy used to tear a role group down. It contains no I/O;
// launching and signalling live in the supervisor and shutdown packages.
package domain
