package porttest

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Addresses used by the scripted module.
const (
	MeterMAC  = "001D129012345678"
	MeterAddr = "FE80:0000:0000:0000:021D:1290:1234:5678"
	LocalAddr = "FE80:0000:0000:0000:021D:1290:0003:C890"
)

// ProbeLines answer SKVER.
func ProbeLines() []string {
	return []string{"EVER 1.2.10", "OK"}
}

// ConfigureLines answer SKSETPWD and SKSETRBID.
func ConfigureLines() []string {
	return []string{"OK", "OK"}
}

// ScanMissLines answer one SKSCAN that found nothing.
func ScanMissLines() []string {
	return []string{"OK", "EVENT 22 " + LocalAddr}
}

// ScanHitLines answer one SKSCAN that found the meter's PAN.
func ScanHitLines() []string {
	return []string{
		"OK",
		"EVENT 20 " + MeterAddr,
		"EPANDESC",
		"  Channel:21",
		"  Channel Page:09",
		"  Pan ID:8888",
		"  Addr:" + MeterMAC,
		"  LQI:E1",
		"  PairID:00C8A3F1",
		"EVENT 22 " + LocalAddr,
	}
}

// RegisterLines answer SKSREG S2 and S3.
func RegisterLines() []string {
	return []string{"OK", "OK"}
}

// ResolveLines answer SKLL64.
func ResolveLines() []string {
	return []string{MeterAddr}
}

// JoinLines answer SKJOIN with a successful PANA authentication.
func JoinLines() []string {
	return []string{
		"OK",
		"EVENT 21 " + MeterAddr + " 00",
		"EVENT 02 " + MeterAddr,
		"ERXUDP " + MeterAddr + " " + LocalAddr + " 02CC 02CC " + MeterMAC + " 0 0028 00000028C00000020000000000000000",
		"EVENT 25 " + MeterAddr,
	}
}

// ConnectLines is the full happy path from power-on to a joined PAN.
func ConnectLines() []string {
	var lines []string
	lines = append(lines, ProbeLines()...)
	lines = append(lines, ConfigureLines()...)
	lines = append(lines, ScanHitLines()...)
	lines = append(lines, RegisterLines()...)
	lines = append(lines, ResolveLines()...)
	lines = append(lines, JoinLines()...)
	return lines
}

// SendLines answer SKSENDTO followed by the meter's reply datagram.
func SendLines(reply []byte) []string {
	return []string{
		"EVENT 21 " + MeterAddr + " 00",
		"OK",
		ERXUDP(reply),
	}
}

func ERXUDP(payload []byte) string {
	return fmt.Sprintf("ERXUDP %s %s 0E1A 0E1A %s 1 %04X %s",
		MeterAddr, LocalAddr, MeterMAC, len(payload), strings.ToUpper(hex.EncodeToString(payload)))
}
