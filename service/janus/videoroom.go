package janus

import (
	"janusbridge/tools/decode"
	"janusbridge/tools/errs"
)

// CreateRoomRequest is the videoroom "create" body.
type CreateRoomRequest struct {
	Request     string `json:"request"`
	Room        uint64 `json:"room,omitempty"`
	AdminKey    string `json:"admin_key,omitempty"`
	Secret      string `json:"secret,omitempty"`
	Description string `json:"description,omitempty"`
	Publishers  int    `json:"publishers,omitempty"`
	Permanent   bool   `json:"permanent"`
}

func CreateRoomBody(room uint64, adminKey, secret string) CreateRoomRequest {
	return CreateRoomRequest{Request: "create", Room: room, AdminKey: adminKey, Secret: secret}
}

// KickRequest is the videoroom "kick" body.
type KickRequest struct {
	Request string `json:"request"`
	Room    uint64 `json:"room"`
	Secret  string `json:"secret,omitempty"`
	ID      uint64 `json:"id"`
}

func KickBody(room uint64, secret string, participant uint64) KickRequest {
	return KickRequest{Request: "kick", Room: room, Secret: secret, ID: participant}
}

// RoomResponse covers the synchronous videoroom answers used by the relay.
type RoomResponse struct {
	Videoroom string `json:"videoroom"`
	Room      uint64 `json:"room"`
	Permanent bool   `json:"permanent"`
	ErrorCode int    `json:"error_code"`
	Error     string `json:"error"`
}

// ParseRoomResponse decodes r and turns a nested videoroom error into *PluginError.
func ParseRoomResponse(r *PluginResult) (*RoomResponse, error) {
	if r == nil || len(r.Data) == 0 {
		return nil, ErrMalformed.WrapMsg("empty videoroom response")
	}
	resp, err := decode.DecodeRaw[RoomResponse](r.Data)
	if err != nil {
		return nil, errs.WrapMsg(ErrMalformed.WithDetail(err.Error()), "videoroom response")
	}
	if resp.ErrorCode != 0 || (resp.Videoroom == "event" && resp.Error != "") {
		return resp, &PluginError{Plugin: r.Plugin, Code: resp.ErrorCode, Reason: resp.Error}
	}
	return resp, nil
}
