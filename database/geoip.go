// Copyright 2023 Gabriel Adrian Samfira
//
//    Licensed under the Apache License, Version 2.0 (the "License"); you may
//    not use this file except in compliance with the License. You may obtain
//    a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
//    WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
//    License for the specific language governing permissions and limitations
//    under the License.

package database

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

func newGeoIP(dbFile string) (*geoIP, error) {
	conn, err := geoip2.Open(dbFile)
	if err != nil {
		return nil, fmt.Errorf("opening geoip database: %w", err)
	}
	return &geoIP{
		dbFile: dbFile,
		conn:   conn,
	}, nil
}

// geoIP enriches login attempts with the location of the client address.
type geoIP struct {
	dbFile string
	conn   *geoip2.Reader
}

// Locate returns the English country and city names for an address.
// Private and unknown addresses yield empty strings.
func (g *geoIP) Locate(ip string) (country string, city string, err error) {
	ipAddr := net.ParseIP(ip)
	if ipAddr == nil {
		return "", "", fmt.Errorf("invalid IP address %s", ip)
	}
	if ipAddr.IsLoopback() || ipAddr.IsPrivate() {
		return "", "", nil
	}
	record, err := g.conn.City(ipAddr)
	if err != nil {
		return "", "", fmt.Errorf("looking up %s: %w", ip, err)
	}
	return record.Country.Names["en"], record.City.Names["en"], nil
}

func (g *geoIP) Close() error {
	return g.conn.Close()
}
