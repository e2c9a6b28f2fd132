// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"flag"
	"net"
	"strconv"
	"strings"
	"time"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-a server address in format [host]:[port]
//	-c/-config json file path with configs
//	-server-binary server executable to spawn on start requests
//	-dial-timeout connection timeout (e.g. "2s")
//	-workers recursive transfer worker count
//	-output-dir default local destination for pulls
//
// Everything after the flags is left in flag.Args() for the command layer.
func ParseFlags() *StructuredConfig {
	var serverAddress NetAddress
	var jsonConfigPath string
	var serverBinary string
	var dialTimeout time.Duration
	var workers int
	var outputDir string

	flag.Var(&serverAddress, "a", "Server net address host:port")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.StringVar(&serverBinary, "server-binary", "", "Server executable path")
	flag.DurationVar(&dialTimeout, "dial-timeout", 0, "Connection timeout (e.g. 2s)")
	flag.IntVar(&workers, "workers", 0, "Recursive transfer worker count")
	flag.StringVar(&outputDir, "output-dir", "", "Default local destination for pulls")

	flag.Parse()

	return &StructuredConfig{
		Server: Server{
			Host:        serverAddress.Host,
			Port:        serverAddress.Port,
			Binary:      serverBinary,
			DialTimeout: dialTimeout,
		},
		Transfer: Transfer{
			Workers:   workers,
			OutputDir: outputDir,
		},
		JSONFilePath: jsonConfigPath,
	}
}

// String returns a canonical host:port string for a NetAddress.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses the input string of form host:port and populates the NetAddress.
// It validates the port range, checks IP correctness unless host is "localhost",
// and returns an error if the format or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 {
		return errors.New("port number is a positive integer")
	}

	if host != "localhost" && host != "" {
		ip := net.ParseIP(hostAndPort[0])
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
