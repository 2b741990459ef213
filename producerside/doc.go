// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package producerside implements the wire protocol between capture event
// producers and the collector: the messages, their protobuf wire encoding,
// and the gRPC glue for the ReceiveCommandsAndSendEvents stream.
//
// Messages are encoded with google.golang.org/protobuf/encoding/protowire and
// exchanged under the "producerside" content subtype. Field numbers follow
// producer_side_services.proto so peers using generated code interoperate.
package producerside // import "go.opentelemetry.io/capture-producer/producerside"
