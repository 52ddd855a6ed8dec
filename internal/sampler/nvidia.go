package sampler

import (
	"bytes"
	"context"
	"encoding/xml"
	"os/exec"
	"strconv"
	"strings"
)

// GPUSample contains the subset of NVIDIA SMI metrics we care about.
type GPUSample struct {
	UtilPercent int
	MemUsedMB   float64
}

// Minimal XML mapping for nvidia-smi -x -q
type smiLog struct {
	XMLName xml.Name `xml:"nvidia_smi_log"`
	GPU     smiGPU   `xml:"gpu"`
}

type smiGPU struct {
	Util  smiUtilization `xml:"utilization"`
	FBMem smiFBMemory    `xml:"fb_memory_usage"`
}

type smiUtilization struct {
	GPU string `xml:"gpu_util"`
}

type smiFBMemory struct {
	Used string `xml:"used"`
}

func hasNvidiaSMI() bool {
	_, err := exec.LookPath("nvidia-smi")
	return err == nil
}

func parsePercentInt(s string) int {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	// Some fields can be like "66 %"
	fields := strings.Fields(s)
	if len(fields) > 0 {
		if v, err := strconv.Atoi(fields[0]); err == nil {
			return v
		}
	}
	return 0
}

func parseMiBFloat(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "MiB")
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	fields := strings.Fields(s)
	if len(fields) > 0 {
		if v, err := strconv.ParseFloat(fields[0], 64); err == nil {
			return v
		}
	}
	return 0
}

// sampleNvidiaSMIXML executes a single nvidia-smi -x -q sample and parses it.
func sampleNvidiaSMIXML(ctx context.Context, device int) (GPUSample, error) {
	var sample GPUSample
	cmd := exec.CommandContext(ctx, "nvidia-smi", "-x", "-q", "-i", strconv.Itoa(device))
	b, err := cmd.Output()
	if err != nil {
		return sample, err
	}
	dec := xml.NewDecoder(bytes.NewReader(b))
	var log smiLog
	if err := dec.Decode(&log); err != nil {
		return sample, err
	}
	gpu := log.GPU
	sample = GPUSample{
		UtilPercent: parsePercentInt(gpu.Util.GPU),
		MemUsedMB:   parseMiBFloat(gpu.FBMem.Used),
	}
	return sample, nil
}
