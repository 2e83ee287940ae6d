// Package acip implements the ACIP wire protocol: packet framing, the
// message type registry, and CRC32C/zstd handling. The codec is
// semantics-free — it does not interpret payload contents beyond the
// IMAGE_FRAME compression flag.
package acip

import "strconv"

// Type is an ACIP packet type. Multi-byte wire fields are big-endian.
type Type uint16

// Packet type registry. Ranges below are authoritative.
const (
	ProtocolVersion Type = 1 // PROTOCOL_VERSION, unencrypted

	// Crypto capabilities & handshake, 1000-1109, unencrypted.
	CryptoClientHello  Type = 1000
	CryptoCapabilities Type = 1100
	CryptoServerHello  Type = 1101
	CryptoDHResponse   Type = 1102
	CryptoDHConfirm    Type = 1103
	CryptoAuthChallenge Type = 1104
	CryptoAuthResponse Type = 1105
	CryptoAuthResult   Type = 1106
	CryptoSessionReady Type = 1107
	CryptoSessionAck   Type = 1108
	CryptoNoEncryption Type = 1109 // NO_ENCRYPTION, transitions straight to Active

	// Encrypted envelope and rekey.
	PacketEncrypted    Type = 1200 // PACKET_ENCRYPTED envelope, AD for AEAD
	CryptoRekeyRequest Type = 1201
	CryptoRekeyResponse Type = 1202
	CryptoRekeyComplete Type = 1203

	// Messages, 2000-2004, encrypted.
	MsgSize      Type = 2000
	MsgAudio     Type = 2001
	MsgText      Type = 2002
	MsgError     Type = 2003
	MsgRemoteLog Type = 2004

	// Media, 3000-3001, encrypted.
	AsciiFrame Type = 3000 // server -> client
	ImageFrame Type = 3001 // client -> server, optionally zstd-compressed

	// Audio, 4000-4001, encrypted.
	AudioBatch     Type = 4000
	AudioOpusBatch Type = 4001

	// Session control, 5000-5009, encrypted.
	Capabilities Type = 5000
	Ping         Type = 5001
	Pong         Type = 5002
	ClientJoin   Type = 5003
	ClientLeave  Type = 5004
	StreamStart  Type = 5005
	StreamStop   Type = 5006
	Clear        Type = 5007
	State        Type = 5008
	// BackupAddr is a dedicated packet type, piggybacked in time
	// alongside keepalive rather than nested inside Pong. See DESIGN.md.
	BackupAddr Type = 5009

	// ACDS: session, signaling, strings, ring consensus, host
	// negotiation, 6000-6068. Signaling contents (SDP/ICE) are opaque
	// to ACDS but the envelope itself is not encrypted with session keys.
	AcdsCreateSession  Type = 6000
	AcdsSessionCreated Type = 6001
	AcdsLookup         Type = 6002
	AcdsLookupResult   Type = 6003
	AcdsJoin           Type = 6004
	AcdsJoined         Type = 6005
	AcdsLeave          Type = 6006
	AcdsReserveString  Type = 6007
	AcdsRenewString    Type = 6008
	AcdsReleaseString  Type = 6009
	AcdsSignal         Type = 6010
	AcdsPing           Type = 6011
	AcdsPong           Type = 6012

	AcipParticipantList Type = 6050
	NetworkQuality      Type = 6060
	HostDesignated      Type = 6062
	SettingsSync        Type = 6063
	SettingsAck         Type = 6064
	AcipHostLost        Type = 6065
	FutureHostElected   Type = 6066
	RingCollect         Type = 6067
	RingCollectAck      Type = 6068

	DiscoveryPing Type = 6100 // unencrypted
	AcdsError     Type = 6199 // unencrypted
)

// String renders a human-readable name for known types; unknown types in
// an extension range are rendered numerically.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	if t >= extensionRangeStart {
		return strconv.Itoa(int(t))
	}
	return "UNKNOWN"
}

var typeNames = map[Type]string{
	ProtocolVersion:     "PROTOCOL_VERSION",
	CryptoClientHello:   "CRYPTO_CLIENT_HELLO",
	CryptoCapabilities:  "CRYPTO_CAPABILITIES",
	CryptoServerHello:   "CRYPTO_SERVER_HELLO",
	CryptoDHResponse:    "CRYPTO_DH_RESPONSE",
	CryptoDHConfirm:     "CRYPTO_DH_CONFIRM",
	CryptoAuthChallenge: "CRYPTO_AUTH_CHALLENGE",
	CryptoAuthResponse:  "CRYPTO_AUTH_RESPONSE",
	CryptoAuthResult:    "CRYPTO_AUTH_RESULT",
	CryptoSessionReady:  "CRYPTO_SESSION_READY",
	CryptoSessionAck:    "CRYPTO_SESSION_ACK",
	CryptoNoEncryption:  "CRYPTO_NO_ENCRYPTION",
	PacketEncrypted:     "PACKET_ENCRYPTED",
	CryptoRekeyRequest:  "CRYPTO_REKEY_REQUEST",
	CryptoRekeyResponse: "CRYPTO_REKEY_RESPONSE",
	CryptoRekeyComplete: "CRYPTO_REKEY_COMPLETE",
	MsgSize:             "MSG_SIZE",
	MsgAudio:            "MSG_AUDIO",
	MsgText:             "MSG_TEXT",
	MsgError:            "MSG_ERROR",
	MsgRemoteLog:        "MSG_REMOTE_LOG",
	AsciiFrame:          "ASCII_FRAME",
	ImageFrame:          "IMAGE_FRAME",
	AudioBatch:          "AUDIO_BATCH",
	AudioOpusBatch:      "AUDIO_OPUS_BATCH",
	Capabilities:        "CAPABILITIES",
	Ping:                "PING",
	Pong:                "PONG",
	ClientJoin:          "CLIENT_JOIN",
	ClientLeave:         "CLIENT_LEAVE",
	StreamStart:         "STREAM_START",
	StreamStop:          "STREAM_STOP",
	Clear:               "CLEAR",
	State:               "STATE",
	BackupAddr:          "BACKUP_ADDR",
	AcdsCreateSession:   "ACDS_CREATE_SESSION",
	AcdsSessionCreated:  "ACDS_SESSION_CREATED",
	AcdsLookup:          "ACDS_LOOKUP",
	AcdsLookupResult:    "ACDS_LOOKUP_RESULT",
	AcdsJoin:            "ACDS_JOIN",
	AcdsJoined:          "ACDS_JOINED",
	AcdsLeave:           "ACDS_LEAVE",
	AcdsReserveString:   "ACDS_RESERVE_STRING",
	AcdsRenewString:     "ACDS_RENEW_STRING",
	AcdsReleaseString:   "ACDS_RELEASE_STRING",
	AcdsSignal:          "ACDS_SIGNAL",
	AcdsPing:            "ACDS_PING",
	AcdsPong:            "ACDS_PONG",
	AcipParticipantList: "ACIP_PARTICIPANT_LIST",
	NetworkQuality:      "NETWORK_QUALITY",
	HostDesignated:      "HOST_DESIGNATED",
	SettingsSync:        "SETTINGS_SYNC",
	SettingsAck:         "SETTINGS_ACK",
	AcipHostLost:        "ACIP_HOST_LOST",
	FutureHostElected:   "FUTURE_HOST_ELECTED",
	RingCollect:         "RING_COLLECT",
	RingCollectAck:      "RING_COLLECT_ACK",
	DiscoveryPing:       "DISCOVERY_PING",
	AcdsError:           "ACDS_ERROR",
}

// InHandshakeRange reports whether t is legal before a session reaches
// Active: PROTOCOL_VERSION or 1000-1109.
func InHandshakeRange(t Type) bool {
	return t == ProtocolVersion || (t >= CryptoClientHello && t <= 1109)
}

// RequiresEncryption reports whether t must arrive inside a
// PACKET_ENCRYPTED envelope once session keys are negotiated.
func RequiresEncryption(t Type) bool {
	return t >= 2000 && t < 6199 && t != DiscoveryPing
}

// IsAcdsType reports whether t belongs to the discovery-server range
// (6000-6199), as opposed to the peer-to-peer range (5000-6068 minus the
// ACDS sub-range carved out above).
func IsAcdsType(t Type) bool {
	return t >= 6000 && t <= 6199
}

// knownType reports whether t is in the authoritative registry above.
func knownType(t Type) bool {
	_, ok := typeNames[t]
	return ok
}

// extensionRangeStart is the first type value reserved for
// implementation-specific extensions; decode() does not reject unknown
// types at or above this value.
const extensionRangeStart Type = 0x8000
