package gamelog

import (
	"fmt"
	"math"
)

// Flat buffer layout shared by the Replay wire format and the viewer feed.
//
//	object: [px py pz qx qy qz qw]
//	agent:  [px py pz qx qy qz qw model flags jointEnd dataEnd joints... data...]
//
// jointEnd and dataEnd are absolute offsets into the agent buffer.
const (
	ObjectBufferSize = 7
	AgentHeaderSize  = ObjectBufferSize + 4

	slotModel    = ObjectBufferSize
	slotFlags    = ObjectBufferSize + 1
	slotJointEnd = ObjectBufferSize + 2
	slotDataEnd  = ObjectBufferSize + 3
)

// ObjectRecord is the position and orientation of a simulated object.
type ObjectRecord struct {
	Position    [3]float64
	Orientation [4]float64 // Quaternion x, y, z, w
}

// IdentityOrientation is the unrotated quaternion.
var IdentityOrientation = [4]float64{0, 0, 0, 1}

// Valid reports whether the record carries data. An all-zero quaternion
// marks an unset record.
func (r ObjectRecord) Valid() bool {
	return r.Orientation != [4]float64{}
}

// AppendBuffer appends the flat representation of r to dst.
func (r ObjectRecord) AppendBuffer(dst []float64) []float64 {
	dst = append(dst, r.Position[:]...)
	return append(dst, r.Orientation[:]...)
}

// UnmarshalObjectRecord reads an object record from the start of buf.
func UnmarshalObjectRecord(buf []float64) (ObjectRecord, error) {
	var r ObjectRecord
	if len(buf) < ObjectBufferSize {
		return r, fmt.Errorf("%w: object buffer has %d slots, need %d", ErrCorruptLog, len(buf), ObjectBufferSize)
	}
	copy(r.Position[:], buf[0:3])
	copy(r.Orientation[:], buf[3:7])
	return r, nil
}

// AgentRecord extends ObjectRecord with model, state flags, joint angles and
// generic per-agent data.
type AgentRecord struct {
	ObjectRecord
	ModelIndex int
	Flags      uint32
	Joints     []float64
	Data       []float64
}

// BufferSize returns the number of slots the flat representation occupies.
func (r *AgentRecord) BufferSize() int {
	return AgentHeaderSize + len(r.Joints) + len(r.Data)
}

// AppendBuffer appends the flat representation of r to dst.
func (r *AgentRecord) AppendBuffer(dst []float64) []float64 {
	jointEnd := AgentHeaderSize + len(r.Joints)
	dataEnd := jointEnd + len(r.Data)

	dst = r.ObjectRecord.AppendBuffer(dst)
	dst = append(dst, float64(r.ModelIndex), float64(r.Flags), float64(jointEnd), float64(dataEnd))
	dst = append(dst, r.Joints...)
	return append(dst, r.Data...)
}

// UnmarshalAgentRecord reads an agent record from the start of buf and
// returns it together with the number of slots consumed.
func UnmarshalAgentRecord(buf []float64) (AgentRecord, int, error) {
	var r AgentRecord
	if len(buf) < AgentHeaderSize {
		return r, 0, fmt.Errorf("%w: agent buffer has %d slots, need at least %d", ErrCorruptLog, len(buf), AgentHeaderSize)
	}

	obj, err := UnmarshalObjectRecord(buf)
	if err != nil {
		return r, 0, err
	}
	r.ObjectRecord = obj

	jointEnd, ok1 := offset(buf[slotJointEnd])
	dataEnd, ok2 := offset(buf[slotDataEnd])
	if !ok1 || !ok2 || jointEnd < AgentHeaderSize || dataEnd < jointEnd {
		return r, 0, fmt.Errorf("%w: invalid agent buffer offsets %v/%v", ErrCorruptLog, buf[slotJointEnd], buf[slotDataEnd])
	}
	if dataEnd > len(buf) {
		return r, 0, fmt.Errorf("%w: agent buffer truncated: need %d slots, have %d", ErrCorruptLog, dataEnd, len(buf))
	}

	r.ModelIndex = int(buf[slotModel])
	r.Flags = uint32(buf[slotFlags])
	if jointEnd > AgentHeaderSize {
		r.Joints = append([]float64(nil), buf[AgentHeaderSize:jointEnd]...)
	}
	if dataEnd > jointEnd {
		r.Data = append([]float64(nil), buf[jointEnd:dataEnd]...)
	}

	return r, dataEnd, nil
}

func offset(v float64) (int, bool) {
	if v < 0 || v != math.Trunc(v) || v > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

// YawOrientation returns the quaternion for a rotation of deg degrees about
// the vertical axis.
func YawOrientation(deg float64) [4]float64 {
	half := deg * math.Pi / 360
	return [4]float64{0, 0, math.Sin(half), math.Cos(half)}
}
