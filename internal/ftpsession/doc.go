// Package ftpsession owns the lifecycle of one FTP control connection.
//
// A Session walks connect, authenticate, and directory selection before it
// reports Ready, opens one STOR data stream at a time through BeginStore, and
// shuts down with a best-effort QUIT. Every failure it returns is a
// failure.Error whose kind was decided here, at the point where the reply
// code or network error is still visible.
//
// The wire is behind the Dialer and Conn interfaces. Production code uses
// FTPDialer, backed by github.com/jlaffaye/ftp; tests substitute the fake in
// internal/testsupport.
package ftpsession
