// Package `chatsrv` implements server application for chat over TCP.
//
// Clients claim unique login with first line `login:<name>`,
// every next line is delivered to all other logged in clients.
// Newly logged in client receives last messages of the chat.
//
// To compile chat server locally, run from package directory:
//
//	go install .
//
// Or quickly launch server with command:
//
//	go run . -ip 127.0.0.1 -port 8888
//
// and connect with any line-oriented client, for example:
//
//	nc 127.0.0.1 8888
//
// Use -ws option to serve browsers over WebSocket in addition to TCP.
package main
