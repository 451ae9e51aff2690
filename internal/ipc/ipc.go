// Package ipc is the unix-socket control surface: the UI process (or the ctl
// binary) sends discrete triggers, the daemon answers with a one-line reply.
package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
)

const DefaultSocketPath = "/tmp/connectaid.sock"

type ControlMessage struct {
	Cmd  string   `json:"cmd"`
	Args []string `json:"args,omitempty"`
}

type Reply struct {
	OK   bool   `json:"ok"`
	Text string `json:"text,omitempty"`
}

// Handler processes one control message and returns the reply text, or an
// error surfaced to the caller.
type Handler func(ControlMessage) (string, error)

func StartServer(socketPath string, handler Handler) error {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	os.Remove(socketPath)

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				continue
			}
			go handleConn(conn, handler)
		}
	}()

	return nil
}

func handleConn(conn net.Conn, handler Handler) {
	defer conn.Close()

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		return
	}

	text, err := handler(msg)
	reply := Reply{OK: err == nil, Text: text}
	if err != nil {
		reply.Text = err.Error()
	}
	json.NewEncoder(conn).Encode(reply)
}

// SendCommand dials the daemon, sends one command, and returns the reply
// text.
func SendCommand(socketPath, cmd string, args ...string) (string, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd, Args: args}); err != nil {
		return "", err
	}

	var reply Reply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return "", err
	}
	if !reply.OK {
		return "", fmt.Errorf("%s", reply.Text)
	}
	return reply.Text, nil
}
