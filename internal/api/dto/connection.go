package dto

import "github.com/hugh/tubelink/internal/connection"

type ConnectionResponse struct {
	State            string  `json:"state"`
	Connected        bool    `json:"connected"`
	ChannelID        *string `json:"channel_id,omitempty"`
	ChannelName      *string `json:"channel_name,omitempty"`
	DownstreamSynced *bool   `json:"downstream_synced,omitempty"`
}

func NewConnectionResponse(st connection.Status) ConnectionResponse {
	return ConnectionResponse{
		State:       st.State.String(),
		Connected:   st.State == connection.Connected,
		ChannelID:   st.ChannelID,
		ChannelName: st.ChannelName,
	}
}

func NewConnectionResult(res *connection.Result) ConnectionResponse {
	resp := NewConnectionResponse(res.Status)
	synced := res.DownstreamSynced
	resp.DownstreamSynced = &synced
	return resp
}
