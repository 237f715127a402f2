package main

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/musicstream/internal/app/playback"
	"github.com/osa030/musicstream/internal/infra/device"
)

// streamParams holds the per-stream parameters accepted as --param key=value.
// Unset fields leave the stream default in place.
type streamParams struct {
	Volume            *float32     `mapstructure:"volume"`
	Pitch             *float32     `mapstructure:"pitch"`
	MinVolume         *float32     `mapstructure:"min_volume"`
	MaxVolume         *float32     `mapstructure:"max_volume"`
	MaxDistance       *float32     `mapstructure:"max_distance"`
	ReferenceDistance *float32     `mapstructure:"reference_distance"`
	Rolloff           *float32     `mapstructure:"rolloff"`
	AirAbsorption     *float32     `mapstructure:"air_absorption"`
	Relative          *bool        `mapstructure:"relative"`
	Position          *device.Vec3 `mapstructure:"position"`
	Direction         *device.Vec3 `mapstructure:"direction"`
	Velocity          *device.Vec3 `mapstructure:"velocity"`
}

var vec3Type = reflect.TypeOf(device.Vec3{})

// parseParams decodes raw key=value pairs into streamParams.
func parseParams(raw map[string]string) (*streamParams, error) {
	var p streamParams
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       vec3Hook,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create param decoder")
	}
	if err := dec.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "invalid stream parameter")
	}
	return &p, nil
}

// vec3Hook turns "x,y,z" into a device.Vec3.
func vec3Hook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != vec3Type {
		return data, nil
	}

	parts := strings.Split(data.(string), ",")
	if len(parts) != 3 {
		return nil, errors.Newf("vector %q must have three comma separated components", data)
	}
	var v device.Vec3
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, errors.Wrapf(err, "vector %q", data)
		}
		v[i] = float32(f)
	}
	return v, nil
}

// apply sets every configured parameter on the stream.
func (p *streamParams) apply(s *playback.Stream) error {
	floats := []struct {
		v   *float32
		set func(float32) error
	}{
		{p.Volume, s.SetVolume},
		{p.Pitch, s.SetPitch},
		{p.MinVolume, s.SetMinVolume},
		{p.MaxVolume, s.SetMaxVolume},
		{p.MaxDistance, s.SetMaxDistance},
		{p.ReferenceDistance, s.SetReferenceDistance},
		{p.Rolloff, s.SetAttenuation},
		{p.AirAbsorption, s.SetAirAbsorption},
	}
	for _, f := range floats {
		if f.v == nil {
			continue
		}
		if err := f.set(*f.v); err != nil {
			return err
		}
	}

	if p.Relative != nil {
		if err := s.SetRelative(*p.Relative); err != nil {
			return err
		}
	}

	vectors := []struct {
		v   *device.Vec3
		set func(x, y, z float32) error
	}{
		{p.Position, s.SetPosition},
		{p.Direction, s.SetDirection},
		{p.Velocity, s.SetVelocity},
	}
	for _, vec := range vectors {
		if vec.v == nil {
			continue
		}
		if err := vec.set(vec.v[0], vec.v[1], vec.v[2]); err != nil {
			return err
		}
	}
	return nil
}
