package protocol

// This package implements the parsing and serialising of lines for the
// protocol that GnuPG-family agents speak over their unix domain sockets
// (the Assuan protocol).
//
// Assuan aims to be
//
// - trivial to implement
// - cheap to parse
// - human readable, so exchanges can be replayed by hand with socat
//
// - `Request`  - An encoded line a client sends to the agent.
// - `Response` - A decoded line the agent sent back to the client.
//
// === General Syntax
//
// - lines are `\n` delimited
// - lines are ASCII, anything that isn't is percent escaped
// - the protocol is half-duplex. The client sends one command, then reads
//   response lines until it sees a terminal `OK` or `ERR`
//
// === Client lines
//
// A client either sends a command, optionally with parameters
//
//   ```
//     GETINFO version\n
//   ```
//
// or a chunk of raw data, percent escaped so it always fits on one line
//
//   ```
//     D quick%0Abrown%25fox\n
//   ```
//
// === Agent lines
//
// Every line the agent sends is identified by it's leading prefix. There
// are exactly five of them
//
// - `OK`  - the command succeeded, the rest of the line is an optional
//           human readable message
// - `ERR` - the command failed. A numeric gpg-error code follows, then an
//           optional description
// - `S`   - a status line. A keyword followed by free-form text
// - `#`   - a comment. Carries no meaning, safe to skip
// - `D`   - raw data, percent escaped like the client form above
//
// For example
//
//   ```
//     > GETINFO version
//     < D 2.2.27
//     < OK
//     > FAKECMD
//     < ERR 67109139 Unknown IPC command
//   ```
//
// === Percent escaping
//
// Data lines must carry arbitrary bytes, including newlines and bytes that
// aren't valid in any text encoding. Escaping works on raw bytes, never on
// decoded text: every byte outside printable ASCII, plus `%` itself, is
// written as `%XX` with two upper case hex digits. Decoding is the exact
// inverse for every possible byte value.
//
// === A note on inquiries
//
// The agent can pause a command to ask the client for more input. On the
// wire that request is just another `S` line, there is no marker that
// separates it from a plain status line. Whether an `S` line is an inquiry
// is something only the caller can know from where it is in the exchange,
// so this package decodes both through the same pattern and leaves the
// decision to the caller.
