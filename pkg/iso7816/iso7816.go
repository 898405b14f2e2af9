/*
Package iso7816 implements the ISO/IEC 7816-4 APDU layer under the card
command sets.

A command APDU goes out, a response APDU with a two-byte status word comes
back. Client hides the T=0 procedure statuses (61XX and 6CXX) and records
every exchange it made in a Trace.

Command sets with their own status space, such as the DESFire native
commands wrapped in class 90 and answered with 91XX, build their commands
with NewProprietaryInstruction and interpret the status themselves:

	cla, _ := iso7816.NewClass(0x90)
	ins := iso7816.NewProprietaryInstruction(0x5A)
	cmd := iso7816.NewCommandAPDU(cla, ins, 0x00, 0x00, aid, iso7816.MaxShortLe)

	trace, err := client.Send(ctx, cmd)
	if err != nil {
		return err
	}
	fmt.Println(trace.Last().Response.Status.Verbose())
*/
package iso7816
