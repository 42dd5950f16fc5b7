package packet

// Client → server ops.
const (
	C_OPCODE_CLICK     = "click"     // {x, y}: walk to a cell (server pathfinds)
	C_OPCODE_MOVE_DONE = "move_done" // {x, y}: step acknowledged, cell the client ended on
	C_OPCODE_POSITION  = "position"  // {x, y}: client-reported position (client_reported mode)
)

// Server → client ops.
const (
	S_OPCODE_WELCOME = "welcome" // own entity id, spawn cell, speed, uptime, mode
	S_OPCODE_MOVE    = "move"    // one step of any visible entity
	S_OPCODE_CORRECT = "correct" // rejected position, snap back
	S_OPCODE_KICK    = "kick"    // policy disconnect, sent just before close
	S_OPCODE_REMOVE  = "remove"  // entity left the world
)
