/*
Package card defines the domain model of a travel card read: the decoded
record types, the immutable Snapshot produced by a successful session, the
error taxonomy and the status enumeration exposed to the presentation layer.

# Card types

A card product is described by a Type: its DESFire application id, the file
layout of the application and a Decoder for each record kind. Products
register themselves in an init function:

	func init() {
		card.Register(hsl.Card{})
	}

and the reader tries the registered types in order until one application
selects.

# Assembling

Records decoded during a session converge in Assemble, which performs the
cross-record checks and returns the Snapshot. No snapshot exists unless every
stage of the session succeeded.
*/
package card
