// Command schema emits a JSON schema for the websocket wire protocol so
// client teams can validate their encoders against the server contract.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"gridwalk/server/internal/net/proto"
)

// protocolDocument exists only for reflection: one field per wire payload.
type protocolDocument struct {
	Envelope       proto.Envelope         `json:"envelope"`
	JoinRoom       proto.JoinRoomRequest  `json:"joinRoom"`
	LeaveRoom      proto.LeaveRoomRequest `json:"leaveRoom"`
	PlayerMove     proto.MoveRequest      `json:"playerMove"`
	PlayerPosition proto.PositionRequest  `json:"playerPosition"`
	Connected      proto.Connected        `json:"connected"`
	ClientsCount   proto.ClientsCount     `json:"clientsCount"`
	PlayerJoined   proto.PlayerJoined     `json:"playerJoined"`
	PlayerLeft     proto.PlayerLeft       `json:"playerLeft"`
	RoomJoined     proto.RoomJoined       `json:"roomJoined"`
	RoomLeft       proto.RoomLeft         `json:"roomLeft"`
	PlayerDelta    proto.PlayerDelta      `json:"playerDelta"`
	Pong           proto.Pong             `json:"pong"`
	ServerInfo     proto.ServerInfo       `json:"serverInfo"`
	Error          proto.ErrorMessage     `json:"error"`
}

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	schema := buildSchema()

	if err := writeSchema(outPath, schema); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(protocolDocument))
	schema.Title = "Gridwalk Game Protocol"
	schema.Description = "Message payloads exchanged on the /game websocket namespace."
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}

	return nil
}
