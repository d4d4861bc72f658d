// Copyright 2026 Hexresearch
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ergvein

import (
	"net"
	"sync"
)

// ConnectionManagerConnClosedFunc is called after a session ends with its outcome
type ConnectionManagerConnClosedFunc func(ConnectionId, error)

// ConnectionManager tracks running sessions and how many of them each remote host holds
type ConnectionManager struct {
	config      ConnectionManagerConfig
	mutex       sync.Mutex
	connections map[ConnectionId]*Connection
	hosts       map[string]int
}

type ConnectionManagerConfig struct {
	ConnClosedFunc ConnectionManagerConnClosedFunc
}

func NewConnectionManager(cfg ConnectionManagerConfig) *ConnectionManager {
	return &ConnectionManager{
		config:      cfg,
		connections: make(map[ConnectionId]*Connection),
		hosts:       make(map[string]int),
	}
}

// AddConnection starts tracking a session and returns the number of sessions its host now holds
func (m *ConnectionManager) AddConnection(conn *Connection) int {
	id := conn.Id()
	host := remoteHost(id.RemoteAddr)
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.connections[id]; ok {
		return m.hosts[host]
	}
	m.connections[id] = conn
	m.hosts[host]++
	return m.hosts[host]
}

// RemoveConnection stops tracking a session and calls the connection closed callback
func (m *ConnectionManager) RemoveConnection(id ConnectionId, err error) {
	host := remoteHost(id.RemoteAddr)
	m.mutex.Lock()
	if _, ok := m.connections[id]; ok {
		delete(m.connections, id)
		m.hosts[host]--
		if m.hosts[host] <= 0 {
			delete(m.hosts, host)
		}
	}
	m.mutex.Unlock()
	if m.config.ConnClosedFunc != nil {
		m.config.ConnClosedFunc(id, err)
	}
}

func (m *ConnectionManager) GetConnectionById(id ConnectionId) *Connection {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.connections[id]
}

// HostConnections returns the number of sessions held by the host part of addr
func (m *ConnectionManager) HostConnections(addr string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.hosts[remoteHost(addr)]
}

// Connections returns the IDs of all tracked sessions
func (m *ConnectionManager) Connections() []ConnectionId {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	ret := make([]ConnectionId, 0, len(m.connections))
	for id := range m.connections {
		ret = append(ret, id)
	}
	return ret
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
