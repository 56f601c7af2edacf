// Package xena implements the line-oriented text protocol spoken by Xena test-equipment chassis
// for port reservation management.
//
// The package is transport agnostic. It offers:
//   - Encoders for the login handshake, the reservation query, the three reservation verbs and logoff.
//   - A persistent line reassembly buffer (LineBuffer) and a deadline-aware LineReader, so responses
//     split across several socket reads are only parsed once a complete "\n" terminated line exists.
//   - A query decoder that turns the streamed "M/P ... STATE" lines, terminated by the "<SYNC>"
//     marker, into an Interfaces directory.
//   - The error taxonomy shared by every layer of go-overseer.
//
// Wire grammar:
//
//	-> C_LOGON "xena"                   <- <OK>
//	-> C_OWNER "overseer"               <- <OK>
//	-> */* P_RESERVATION ?              <- M/P P_RESERVATION STATE  (one per port)
//	-> SYNC                             <- <SYNC>
//	-> M/P P_RESERVATION RESERVE        <- <OK>
//	-> M/P P_RESERVATION RELEASE        <- <OK>
//	-> M/P P_RESERVATION RELINQUISH     <- <OK>
//	-> C_LOGOFF
//
// STATE is one of RELEASED, RESERVED_BY_YOU, RESERVED_BY_OTHER. Module and port ids are decimal 0..255.
package xena
