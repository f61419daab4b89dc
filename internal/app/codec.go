package app

import (
	"errors"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/tapline/internal/hook"
	plua "github.com/dshills/tapline/internal/plugin/lua"
)

// Lua sees a session as a table with a set method:
//
//	hooks.tap("initialize", "Stamp", function(session)
//	  session:set("startedBy", "ci")
//	end)
var sessionCodec = plua.Codec[*Session, hook.Void]{
	Encode: func(L *lua.LState, s *Session) lua.LValue {
		t := L.NewTable()
		t.RawSetString("id", lua.LString(s.ID))
		t.RawSetString("inputs", plua.ToLuaValue(L, s.Inputs))
		t.RawSetString("startedAt", lua.LString(s.StartedAt.Format(time.RFC3339)))
		t.RawSetString("meta", plua.ToLuaValue(L, s.Meta))
		t.RawSetString("set", L.NewFunction(func(L *lua.LState) int {
			key := L.CheckString(2)
			s.Meta[key] = plua.ToGoValue(L.Get(3))
			return 0
		}))
		return t
	},
}

var resolveCodec = plua.Codec[*ResolveRequest, string]{}

// Sources travel as {path, type, content} tables. Transform taps return
// the table, changed or not, or nil to leave the source alone.
var sourceCodec = plua.Codec[*Source, *Source]{
	Encode: func(L *lua.LState, s *Source) lua.LValue {
		return plua.ToLuaValue(L, s)
	},
	Decode: func(L *lua.LState, lv lua.LValue) (*Source, error) {
		t, ok := lv.(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("transform tap must return a source table, got %s", lv.Type())
		}
		src := &Source{}
		var hasPath, hasContent bool
		src.Path, hasPath = plua.TableString(t, "path")
		src.Content, hasContent = plua.TableString(t, "content")
		if !hasPath || !hasContent {
			return nil, errors.New("transform tap returned a source without path or content")
		}
		src.Type, _ = plua.TableString(t, "type")
		return src, nil
	},
}

// Lua sees assets through methods bound to the Go set, so changes made
// by a tap are visible to every later tap and step:
//
//	hooks.tap("processAssets", {name = "Banner", stage = 100}, function(assets)
//	  for _, name in ipairs(assets:names()) do
//	    assets:set(name, "/* banner */\n" .. assets:get(name))
//	  end
//	end)
var assetsCodec = plua.Codec[*Assets, hook.Void]{
	Encode: func(L *lua.LState, a *Assets) lua.LValue {
		t := L.NewTable()
		L.SetFuncs(t, map[string]lua.LGFunction{
			"get": func(L *lua.LState) int {
				content, ok := a.Get(L.CheckString(2))
				if !ok {
					L.Push(lua.LNil)
					return 1
				}
				L.Push(lua.LString(content))
				return 1
			},
			"set": func(L *lua.LState) int {
				a.Set(L.CheckString(2), L.CheckString(3))
				return 0
			},
			"delete": func(L *lua.LState) int {
				L.Push(lua.LBool(a.Delete(L.CheckString(2))))
				return 1
			},
			"rename": func(L *lua.LState) int {
				L.Push(lua.LBool(a.Rename(L.CheckString(2), L.CheckString(3))))
				return 1
			},
			"names": func(L *lua.LState) int {
				L.Push(plua.ToLuaValue(L, a.Names()))
				return 1
			},
			"info": func(L *lua.LState) int {
				L.Push(plua.ToLuaValue(L, a.Info(L.CheckString(2))))
				return 1
			},
			"setInfo": func(L *lua.LState) int {
				L.Push(lua.LBool(a.SetInfo(L.CheckString(2), L.CheckString(3), L.CheckString(4))))
				return 1
			},
			"len": func(L *lua.LState) int {
				L.Push(lua.LNumber(a.Len()))
				return 1
			},
		})
		return t
	},
}

var statsCodec = plua.Codec[*Stats, hook.Void]{}
