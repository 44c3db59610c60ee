package manager

import (
	"github.com/libp2p/go-libp2p-core/network"

	"github.com/eth2node/peerd/score"
)

// actionForRPCError reproduces spec.md §4.5's RPC-error→PeerAction table
// exactly (grounded on original_source/.../peer_manager/mod.rs's
// handle_rpc_error). proto/direction are only consulted by the handful of
// entries whose severity depends on them; ok is false when the table says
// "no report".
func actionForRPCError(err RPCError, proto Protocol, direction network.Direction) (score.PeerAction, bool) {
	switch err.Kind {
	case RPCErrorIncompleteStream:
		return score.MidToleranceError, true

	case RPCErrorInternalError, RPCErrorHandlerRejected, RPCErrorDisconnected:
		return 0, false

	case RPCErrorInvalidData, RPCErrorSSZDecodeError:
		return score.Fatal, true

	case RPCErrorIoError:
		return score.HighToleranceError, true

	case RPCErrorResponse:
		return actionForErrorResponse(err.Code, proto)

	case RPCErrorUnsupportedProtocol:
		return actionForUnsupportedProtocol(proto)

	case RPCErrorStreamTimeout:
		return actionForStreamTimeout(proto, direction)

	case RPCErrorNegotiationTimeout:
		return score.LowToleranceError, true

	default:
		return 0, false
	}
}

func actionForErrorResponse(code RPCResponseErrorCode, proto Protocol) (score.PeerAction, bool) {
	switch code {
	case Unknown:
		return score.HighToleranceError, true
	case ResourceUnavailable:
		return score.Fatal, true
	case ServerError:
		return score.MidToleranceError, true
	case InvalidRequest:
		return score.HighToleranceError, true
	case RateLimited:
		switch proto {
		case ProtocolGoodbye, ProtocolStatus:
			return score.LowToleranceError, true
		default:
			// Ping, DataByHash, AnswerFile, GetChunks.
			return score.MidToleranceError, true
		}
	default:
		return 0, false
	}
}

func actionForUnsupportedProtocol(proto Protocol) (score.PeerAction, bool) {
	switch proto {
	case ProtocolPing:
		return score.Fatal, true
	case ProtocolStatus:
		return score.LowToleranceError, true
	default:
		// Goodbye, DataByHash, AnswerFile, GetChunks: no report.
		return 0, false
	}
}

func actionForStreamTimeout(proto Protocol, direction network.Direction) (score.PeerAction, bool) {
	if direction != network.DirOutbound {
		return 0, false
	}
	switch proto {
	case ProtocolPing:
		return score.LowToleranceError, true
	case ProtocolGoodbye, ProtocolStatus:
		return 0, false
	default:
		// DataByHash, AnswerFile, GetChunks.
		return score.MidToleranceError, true
	}
}
