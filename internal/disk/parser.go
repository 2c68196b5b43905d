package disk

import (
	"encoding/json"
	"errors"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/toolcli"
)

type infoResponse struct {
	Filename    string  `json:"filename"`
	Format      string  `json:"format"`
	VirtualSize *uint64 `json:"virtual-size"`
	ActualSize  uint64  `json:"actual-size"`
}

func parseInfo(raw []byte) (models.DiskInfo, error) {
	var payload infoResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return models.DiskInfo{}, &toolcli.ParseError{Raw: string(raw), Err: err}
	}
	if payload.VirtualSize == nil {
		return models.DiskInfo{}, &toolcli.ParseError{Raw: string(raw), Err: errors.New("virtual-size missing from qemu-img info output")}
	}
	return models.DiskInfo{
		Path:             payload.Filename,
		Format:           payload.Format,
		VirtualSizeBytes: *payload.VirtualSize,
		ActualSizeBytes:  payload.ActualSize,
	}, nil
}
