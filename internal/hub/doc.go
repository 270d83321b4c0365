// Package hub fans progress events out to live client connections grouped by
// channel.
//
// A connection belongs to at most one channel at a time; subscribing again
// moves it. Channels are named "landing:<id>" for generation jobs and
// "chat:<id>" for chats, and are pruned as soon as they have no members.
// Broadcast encodes an event once and writes it to every open member,
// silently dropping members found closed. A broadcast with no subscribers is
// expected (the job may start before the client subscribes) and only logged.
//
// LivenessSweep pings every connection and closes, on the following sweep,
// any connection that has not answered. The gorilla/websocket adapter in
// websocket.go feeds pongs back through MarkAlive.
package hub
