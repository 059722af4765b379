package provision

// createContainerSchema is the JSON schema for the body of POST /containers.
const createContainerSchema = `{
  "$schema": "http://json-schema.org/draft-06/schema#",
  "title": "Create container request",
  "type": "object",
  "properties": {
    "image": {
      "description": "Name of the image to run, without tag.",
      "type": "string",
      "minLength": 1
    },
    "tag": {
      "description": "Image tag. Defaults to latest.",
      "type": "string",
      "minLength": 1
    }
  },
  "required": ["image"]
}`
