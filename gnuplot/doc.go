/*
Package gnuplot is the protocol engine for driving a long-lived gnuplot
child process. It owns the child's stdin (the command and payload stream)
and stderr (the diagnostic stream), and emulates synchronous
request/response over those two asynchronous byte streams.

The wire format has no framing. Synchronization works by round-tripping
sentinel tokens: after writing commands, the engine sends a gnuplot `print`
of a unique token and reads stderr until the token appears. Everything
before the token is the child's diagnostic output for the commands written
since the previous checkpoint; recognized warning lines are stripped out
and optionally forwarded, and any remaining text is an error.

Because `print` and `set print` are themselves the synchronization
mechanism, command lines that would redirect or pollute the diagnostic
stream are refused by the guarded send path unless the caller holds the
matching Allow flag. The session's own terminal and output configuration
paths are the only holders of those flags.

A checkpoint that sees no stderr bytes within the poll timeout concludes
the child is wedged. That state is terminal: the child may be blocked
mid-read on a partial payload, so no further writes are safe, and teardown
kills the process instead of sending an exit command.
*/
package gnuplot
