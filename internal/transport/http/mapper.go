package http

import (
	"encoding/json"

	"github.com/peersync/peersync/internal/core"
	"github.com/peersync/peersync/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, nil, err
		}
		if join.RoomID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "roomId is required"}, nil
		}
		return &core.Command{
			Kind: core.CommandJoinRoom,
			Room: join.RoomID,
			Name: join.UserName,
		}, nil, nil
	case proto.InboundTypeSignal:
		var sig proto.SignalData
		if err := json.Unmarshal(inbound.Data, &sig); err != nil {
			return nil, nil, err
		}
		if sig.RoomID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "roomId is required"}, nil
		}
		// Signal is relayed verbatim, malformed or not.
		return &core.Command{
			Kind:   core.CommandRelaySignal,
			Room:   sig.RoomID,
			Signal: sig.Signal,
		}, nil, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventRoomMembers:
		return proto.Outbound{
			Type: proto.OutboundTypeMembers,
			Data: event.Members,
		}
	case core.EventSignal:
		return proto.Outbound{
			Type: proto.OutboundTypeSignal,
			Data: proto.SignalEvent{
				From:   event.From,
				Signal: event.Signal,
			},
		}
	case core.EventSessionTerminated:
		return proto.Outbound{Type: proto.OutboundTypeTerminated}
	case core.EventRoomError:
		code := core.ErrCodeSessionExpired
		if event.Error != nil {
			code = event.Error.Code
		}
		return proto.Outbound{
			Type: proto.OutboundTypeRoomError,
			Data: code,
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown event"}}
	}
}
