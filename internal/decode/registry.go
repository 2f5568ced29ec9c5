package decode

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// DynamicRegistry resolves type URLs against compiled protobuf descriptor
// sets loaded at start-up. It is immutable after load and safe to share
// across decoder workers.
type DynamicRegistry struct {
	files *protoregistry.Files
	types *dynamicpb.Types
	json  protojson.MarshalOptions
}

// LoadDescriptorDir reads every FileDescriptorSet under dir (*.binpb, *.desc,
// *.pb) and builds a dynamic registry. Duplicate file descriptors across sets
// are deduplicated by name; unresolvable imports are tolerated so a partial
// schema tree still decodes the types it does cover.
func LoadDescriptorDir(dir string) (*DynamicRegistry, error) {
	merged := &descriptorpb.FileDescriptorSet{}
	seen := make(map[string]bool)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read descriptor dir %s: %w", dir, err)
	}
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		switch filepath.Ext(ent.Name()) {
		case ".binpb", ".desc", ".pb":
		default:
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, ent.Name()))
		if err != nil {
			return nil, fmt.Errorf("read descriptor set %s: %w", ent.Name(), err)
		}
		var fds descriptorpb.FileDescriptorSet
		if err := proto.Unmarshal(data, &fds); err != nil {
			return nil, fmt.Errorf("parse descriptor set %s: %w", ent.Name(), err)
		}
		for _, fd := range fds.File {
			if seen[fd.GetName()] {
				continue
			}
			seen[fd.GetName()] = true
			merged.File = append(merged.File, fd)
		}
	}
	if len(merged.File) == 0 {
		return nil, fmt.Errorf("no descriptor sets found under %s", dir)
	}

	files, err := (protodesc.FileOptions{AllowUnresolvable: true}).NewFiles(merged)
	if err != nil {
		return nil, fmt.Errorf("build file registry: %w", err)
	}
	log.Printf("[decode] dynamic registry loaded: %d proto files from %s", len(merged.File), dir)

	types := dynamicpb.NewTypes(files)
	return &DynamicRegistry{
		files: files,
		types: types,
		json: protojson.MarshalOptions{
			UseProtoNames: true,
			Resolver:      types,
		},
	}, nil
}

// Decode unmarshals bz as the message named by typeURL and renders it as a
// generic JSON map: bytes base64-encoded, 64-bit integers and enums as
// strings (protojson defaults).
func (r *DynamicRegistry) Decode(typeURL string, bz []byte) (map[string]any, error) {
	name := protoreflect.FullName(strings.TrimPrefix(typeURL, "/"))
	desc, err := r.files.FindDescriptorByName(name)
	if err != nil {
		return nil, fmt.Errorf("unknown type %s: %w", typeURL, err)
	}
	md, ok := desc.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, fmt.Errorf("%s is not a message", typeURL)
	}

	msg := dynamicpb.NewMessage(md)
	if err := (proto.UnmarshalOptions{Resolver: r.types}).Unmarshal(bz, msg); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", typeURL, err)
	}

	jz, err := r.json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", typeURL, err)
	}
	var out map[string]any
	if err := json.Unmarshal(jz, &out); err != nil {
		return nil, err
	}
	return out, nil
}
