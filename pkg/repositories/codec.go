package repositories

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	roomtypes "github.com/muster-live/muster/pkg/rooms/types"
)

// encodeRecord serializes a room record to zstd-compressed JSON.
// Records grow with the member directory and the ability logs, so the
// stored blob is compressed.
func encodeRecord(record *roomtypes.RoomRecord) ([]byte, error) {
	b, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal room record: %v", err)
	}

	compressed := bytes.NewBuffer(nil)
	compWriter, err := zstd.NewWriter(compressed, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %v", err)
	}
	if _, err := compWriter.Write(b); err != nil {
		return nil, fmt.Errorf("failed to compress room record: %v", err)
	}
	if err := compWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd writer: %v", err)
	}

	return compressed.Bytes(), nil
}

// decodeRecord reverses encodeRecord.
func decodeRecord(data []byte) (*roomtypes.RoomRecord, error) {
	compReader, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %v", err)
	}
	defer compReader.Close()

	b, err := io.ReadAll(compReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed room record: %v", err)
	}

	record := &roomtypes.RoomRecord{}
	if err := json.Unmarshal(b, record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room record: %v", err)
	}
	if record.Members == nil {
		record.Members = make(map[string]*roomtypes.Member)
	}

	return record, nil
}
